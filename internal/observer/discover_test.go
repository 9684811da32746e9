package observer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeNDJSON(t *testing.T, path string, rows []map[string]any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(append(raw, '\n')); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPickLastOptionProposalPrefersMostRecentOption(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	writeNDJSON(t, proposalsPath(dir, now), []map[string]any{
		{"proposal_id": "p1", "asset_type": "OPTION", "symbol": "SPY"},
		{"proposal_id": "p2", "asset_type": "EQUITY", "symbol": "QQQ"},
		{"proposal_id": "p3", "asset_type": "OPTION", "symbol": "IWM"},
	})

	plan, path := pickLastOptionProposalFromArtifacts(dir, now)
	if plan == nil {
		t.Fatal("expected a plan")
	}
	if plan["proposal_id"] != "p3" {
		t.Errorf("got proposal_id %v", plan["proposal_id"])
	}
	if path == "" {
		t.Error("expected a non-empty path")
	}
}

func TestPickLastOptionProposalEmptyWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	plan, _ := pickLastOptionProposalFromArtifacts(dir, now)
	if plan != nil {
		t.Errorf("expected nil, got %+v", plan)
	}
}

func TestPickLastExecutionDecisionMatchesByProposalID(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	writeNDJSON(t, decisionsPath(dir, now), []map[string]any{
		{"proposal_id": "p1", "decision": "REJECT"},
		{"proposal_id": "p2", "decision": "APPROVE", "decision_id": "d2"},
	})

	row, path := pickLastExecutionDecisionForProposal(dir, "p2", now)
	if row == nil {
		t.Fatal("expected a decision row")
	}
	if row["decision_id"] != "d2" {
		t.Errorf("got %+v", row)
	}
	if path == "" {
		t.Error("expected a non-empty path")
	}
}

func TestPickLastExecutionDecisionNilWhenNoMatch(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	writeNDJSON(t, decisionsPath(dir, now), []map[string]any{{"proposal_id": "other"}})

	row, _ := pickLastExecutionDecisionForProposal(dir, "p2", now)
	if row != nil {
		t.Errorf("expected nil, got %+v", row)
	}
}

func TestSearchStdoutLogsForEvidenceFindsJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")
	content := "2026-07-30T12:00:00Z INFO {\"proposal_id\":\"p9\",\"decision\":\"APPROVE\",\"decision_id\":\"d9\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	row, source := searchStdoutLogsForEvidence([]string{path}, "p9")
	if row == nil {
		t.Fatal("expected a row")
	}
	if row["decision_id"] != "d9" {
		t.Errorf("got %+v", row)
	}
	if source != path {
		t.Errorf("source = %q", source)
	}
}

func TestSearchStdoutLogsForEvidenceNilWhenNoMatch(t *testing.T) {
	row, _ := searchStdoutLogsForEvidence([]string{"/nonexistent/path.log"}, "p9")
	if row != nil {
		t.Errorf("expected nil, got %+v", row)
	}
}
