package observer

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// proposalsPath returns today's proposals NDJSON path under auditDir, matching the
// day-partitioned layout the proposal emitter writes to (audit/<date>/proposals.ndjson).
func proposalsPath(auditDir string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	return filepath.Join(auditDir, day, "proposals.ndjson")
}

// decisionsPath returns today's decisions NDJSON path under decisionsBaseDir, matching
// the execution agent's layout (<base>/<date>/decisions.ndjson).
func decisionsPath(decisionsBaseDir string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	return filepath.Join(decisionsBaseDir, day, "decisions.ndjson")
}

func readNDJSON(path string) []map[string]any {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []map[string]any
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// pickLastOptionProposalFromArtifacts scans today's proposals NDJSON for the most
// recent OPTION-asset proposal; a row with no asset_type also qualifies. It only ever
// looks at the current UTC day's file,
// matching this platform's day-partitioned audit layout — unlike the original's
// multi-day glob-by-mtime search, there is exactly one file to consider.
func pickLastOptionProposalFromArtifacts(auditDir string, now time.Time) (map[string]any, string) {
	path := proposalsPath(auditDir, now)
	rows := readNDJSON(path)
	for i := len(rows) - 1; i >= 0; i-- {
		assetType := strings.ToUpper(firstStr(rows[i], "asset_type"))
		if assetType == "" || assetType == "OPTION" {
			return rows[i], path
		}
	}
	return nil, path
}

// pickLastExecutionDecisionForProposal scans today's decisions NDJSON for the record
// matching proposalID, preferring the latest one if a proposal was somehow decided
// more than once.
func pickLastExecutionDecisionForProposal(decisionsBaseDir, proposalID string, now time.Time) (map[string]any, string) {
	path := decisionsPath(decisionsBaseDir, now)
	rows := readNDJSON(path)
	var match map[string]any
	for _, row := range rows {
		if firstStr(row, "proposal_id") == proposalID {
			match = row
		}
	}
	return match, path
}

// searchStdoutLogsForEvidence is the last-resort fallback when no decisions NDJSON
// entry exists for a proposal: scan a set of plain-text log files (e.g. captured
// container stdout) for a JSON line mentioning the proposal id and an APPROVE/REJECT
// decision, exactly as the original does when its structured artifacts are missing.
func searchStdoutLogsForEvidence(logPaths []string, proposalID string) (map[string]any, string) {
	for _, path := range logPaths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var last map[string]any
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.Contains(line, proposalID) {
				continue
			}
			idx := strings.IndexByte(line, '{')
			if idx < 0 {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(line[idx:]), &obj); err != nil {
				continue
			}
			if firstStr(obj, "proposal_id") != proposalID {
				continue
			}
			if d := strings.ToUpper(firstStr(obj, "decision")); d == "APPROVE" || d == "REJECT" {
				last = obj
			}
		}
		f.Close()
		if last != nil {
			return last, path
		}
	}
	return nil, ""
}
