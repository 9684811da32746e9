// Package execagent implements the execution agent's proposal-consuming loop
// (spec §4.C8): tail-follow the proposals NDJSON file, deduplicate in-process, decide,
// and append an execution decision. No order is ever submitted from this package.
package execagent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/decision"
	"github.com/shadowtrader/platform/internal/proposal"
)

// Config holds the execution agent's runtime settings, mirroring the env vars spec
// §6 names for this component.
type Config struct {
	ProposalsPath          string
	DecisionsBaseDir       string
	StartAtEnd             bool
	PollInterval           time.Duration
	AgentName              string
	AgentRole              string
	MarketdataStaleAfter   time.Duration
}

// ConfigFromEnv reads the C8 env vars, applying the spec-mandated defaults.
func ConfigFromEnv() Config {
	startAt := strings.ToLower(strings.TrimSpace(os.Getenv("PROPOSALS_START_AT")))
	pollSeconds := 0.25
	if raw := strings.TrimSpace(os.Getenv("PROPOSALS_POLL_INTERVAL_S")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			pollSeconds = v
		}
	}

	agentName := strings.TrimSpace(os.Getenv("AGENT_NAME"))
	if agentName == "" {
		agentName = "execution-agent"
	}
	agentRole := strings.TrimSpace(os.Getenv("AGENT_ROLE"))
	if agentRole == "" {
		agentRole = "execution"
	}

	decisionsBaseDir := strings.TrimSpace(os.Getenv("DECISIONS_BASE_DIR"))
	if decisionsBaseDir == "" {
		decisionsBaseDir = "audit/execution_decisions"
	}

	return Config{
		ProposalsPath:        strings.TrimSpace(os.Getenv("PROPOSALS_PATH")),
		DecisionsBaseDir:     decisionsBaseDir,
		StartAtEnd:           startAt != "beginning",
		PollInterval:         time.Duration(pollSeconds * float64(time.Second)),
		AgentName:            agentName,
		AgentRole:            agentRole,
		MarketdataStaleAfter: time.Duration(intEnv("MARKETDATA_STALE_THRESHOLD_S", 120)) * time.Second,
	}
}

func decisionOutputPath(baseDir string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	return filepath.Join(baseDir, day, "decisions.ndjson")
}

// loadPriorDecisionIDsToday seeds a set of proposal ids already decided today, purely
// for duplicate-visibility logging across restarts; it never suppresses processing.
func loadPriorDecisionIDsToday(decisionsPath string) map[string]bool {
	prior := make(map[string]bool)
	f, err := os.Open(decisionsPath)
	if err != nil {
		return prior
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if pid, ok := obj["proposal_id"].(string); ok && pid != "" {
			prior[pid] = true
		}
	}
	return prior
}

func appendDecisionNDJSON(decisionsPath string, obj any) bool {
	if err := os.MkdirAll(filepath.Dir(decisionsPath), 0o755); err != nil {
		return false
	}
	f, err := os.OpenFile(decisionsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	raw, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	raw = append(raw, '\n')
	_, err = f.Write(raw)
	return err == nil
}

// Agent is the running execution agent: it tail-follows ProposalsPath, deduplicates
// in-process, decides, and appends decisions.
type Agent struct {
	cfg         Config
	logger      zerolog.Logger
	killSwitch  KillSwitchState
	auditLogger *audit.Logger
}

// New constructs an Agent. killSwitch is queried fresh for every proposal.
func New(cfg Config, logger zerolog.Logger, killSwitch KillSwitchState) *Agent {
	return &Agent{cfg: cfg, logger: logger, killSwitch: killSwitch}
}

// WithAuditLogger attaches a durable audit trail; every execution decision is recorded
// through it in addition to the structured log line. A nil logger is a no-op.
func (a *Agent) WithAuditLogger(auditLogger *audit.Logger) *Agent {
	a.auditLogger = auditLogger
	return a
}

// Run tails the proposals file until ctx is cancelled. It returns nil on a clean
// cancellation and a non-nil error for anything that should cause the process to
// exit non-zero (e.g. the proposals file missing at startup, or a read error). The
// file is opened once; removing it after startup does not end the loop.
func (a *Agent) Run(ctx context.Context) error {
	now0 := time.Now().UTC()
	decisionsPath := decisionOutputPath(a.cfg.DecisionsBaseDir, now0)
	priorIDsToday := loadPriorDecisionIDsToday(decisionsPath)
	processedIDs := make(map[string]bool)

	a.logger.Info().
		Str("intent_type", "execution_agent_started").
		Str("proposals_path", a.cfg.ProposalsPath).
		Str("decisions_path", decisionsPath).
		Bool("dedupe_seeded_from_today_artifacts", true).
		Int("prior_decision_ids_today", len(priorIDsToday)).
		Msg("execution agent started")

	f, err := os.Open(a.cfg.ProposalsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if a.cfg.StartAtEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(f)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" {
			if sleepOrDone(ctx, a.cfg.PollInterval) {
				return nil
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var p proposal.OrderProposal
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			a.logger.Warn().Str("intent_type", "proposal_parse_error").Err(err).Msg("invalid proposal json")
			continue
		}

		proposalID := p.ProposalID.String()
		if proposalID == "" || proposalID == "00000000-0000-0000-0000-000000000000" {
			proposalID = "missing_proposal_id"
		}

		if processedIDs[proposalID] {
			a.logger.Info().
				Str("intent_type", "proposal_duplicate_seen").
				Str("proposal_id", proposalID).
				Bool("duplicate_seen", true).
				Str("dedupe_scope", "in_memory").
				Msg("duplicate proposal ignored")
			continue
		}
		processedIDs[proposalID] = true

		duplicateSeenToday := priorIDsToday[proposalID]
		safety := BuildSafetySnapshot(a.killSwitch, time.Now().UTC())
		d := decision.Decide(p, safety, a.cfg.AgentName, a.cfg.AgentRole, time.Now().UTC())

		a.logger.Info().
			Str("intent_type", "execution_decision").
			Str("decision_id", d.DecisionID).
			Str("proposal_id", d.ProposalID).
			Str("decision", string(d.Decision)).
			Strs("reason_codes", d.RejectReasonCodes).
			Bool("duplicate_seen", duplicateSeenToday).
			Msg("execution decision recorded")

		if !appendDecisionNDJSON(decisionsPath, d) {
			a.logger.Warn().
				Str("intent_type", "decision_output_fallback_stdout").
				Interface("decision", d).
				Msg("decision audit write failed, falling back to stdout")
		}

		if a.auditLogger != nil {
			if err := a.auditLogger.LogExecutionDecision(ctx, d.ProposalID, d.DecisionID, string(d.Decision)); err != nil {
				a.logger.Error().Err(err).Msg("failed to record execution-decision audit event")
			}
		}
	}
}

// sleepOrDone sleeps for d unless ctx finishes first, in which case it returns true.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
