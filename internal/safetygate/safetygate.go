// Package safetygate implements the execution agent's startup safety gate: a
// boot-time check that the running environment is wired for an observe-only
// posture before the agent does anything else. Any deviation refuses startup.
package safetygate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ExpectedIdentity names the three project-specific literals a deployment's
// environment must match exactly. These come from config/deployment, not from the
// platform itself — only AGENT_MODE/EXECUTION_AGENT_ENABLED/BROKER_EXECUTION_ENABLED/
// EXECUTION_ENABLED are universal, hardcoded fixed-literal checks.
type ExpectedIdentity struct {
	RepoID    string
	AgentName string
	AgentRole string
}

// Gate evaluates whether the current process is allowed to run as an execution
// agent: every required variable must match its expected literal exactly,
// case-sensitively, with no trimming-based leniency beyond surrounding whitespace.
type Gate struct {
	identity ExpectedIdentity
}

// NewGate constructs a Gate bound to the deployment's expected identity literals.
func NewGate(identity ExpectedIdentity) *Gate {
	return &Gate{identity: identity}
}

func lookup(getenv func(string) string, name string) (string, bool) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return "", false
	}
	return v, true
}

// Evaluate checks getenv against every required literal and returns (true, nil) if
// the environment is safe to run in, or (false, reasonCodes) naming every violated
// check. getenv is injected so tests never touch the real process environment.
func (g *Gate) Evaluate(getenv func(string) string) (bool, []string) {
	var reasons []string

	requiredExact := []struct {
		name     string
		expected string
	}{
		{"REPO_ID", g.identity.RepoID},
		{"AGENT_NAME", g.identity.AgentName},
		{"AGENT_ROLE", g.identity.AgentRole},
		{"AGENT_MODE", "OBSERVE"},
		{"EXECUTION_AGENT_ENABLED", "true"},
	}

	for _, req := range requiredExact {
		actual, ok := lookup(getenv, req.name)
		if !ok {
			reasons = append(reasons, req.name+"_missing")
		} else if actual != req.expected {
			reasons = append(reasons, req.name+"_mismatch")
		}
	}

	if broker, ok := lookup(getenv, "BROKER_EXECUTION_ENABLED"); !ok {
		reasons = append(reasons, "BROKER_EXECUTION_ENABLED_missing")
	} else if broker != "false" {
		reasons = append(reasons, "BROKER_EXECUTION_ENABLED_not_false")
	}

	if exec, ok := lookup(getenv, "EXECUTION_ENABLED"); !ok {
		reasons = append(reasons, "EXECUTION_ENABLED_missing")
	} else if exec != "false" {
		reasons = append(reasons, "EXECUTION_ENABLED_not_false")
	}

	return len(reasons) == 0, reasons
}

// refusalPayload is the single structured log line emitted on a gate refusal.
type refusalPayload struct {
	TS            string            `json:"ts"`
	IntentType    string            `json:"intent_type"`
	Severity      string            `json:"severity"`
	Service       string            `json:"service"`
	Env           string            `json:"env"`
	ReasonCodes   []string          `json:"reason_codes"`
	RequiredGate  map[string]string `json:"required_gate"`
}

func firstNonEmptyEnv(getenv func(string) string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

// RefuseStartup writes one structured JSON line to w describing why startup was
// refused. Callers are expected to follow it with os.Exit(2).
func (g *Gate) RefuseStartup(w *os.File, getenv func(string) string, reasonCodes []string) {
	service := firstNonEmptyEnv(getenv, "SERVICE_NAME", "K_SERVICE", "AGENT_NAME")
	if service == "" {
		service = g.identity.AgentName
	}
	env := firstNonEmptyEnv(getenv, "ENVIRONMENT", "ENV", "APP_ENV", "DEPLOY_ENV")
	if env == "" {
		env = "unknown"
	}

	payload := refusalPayload{
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
		IntentType:  "execution_agent_startup_refused",
		Severity:    "ERROR",
		Service:     service,
		Env:         env,
		ReasonCodes: reasonCodes,
		RequiredGate: map[string]string{
			"REPO_ID":                  g.identity.RepoID,
			"AGENT_NAME":               g.identity.AgentName,
			"AGENT_ROLE":               g.identity.AgentRole,
			"AGENT_MODE":               "OBSERVE",
			"EXECUTION_AGENT_ENABLED":  "true",
			"BROKER_EXECUTION_ENABLED": "false",
			"EXECUTION_ENABLED":        "false",
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintln(w, `{"intent_type":"execution_agent_startup_refused","severity":"ERROR"}`)
		return
	}
	fmt.Fprintln(w, string(raw))
}

// EnforceOrExit evaluates the gate against os.Getenv and, on failure, writes the
// refusal line to os.Stdout and exits with code 2. It returns only when the gate
// passes.
func (g *Gate) EnforceOrExit() {
	ok, reasons := g.Evaluate(os.Getenv)
	if ok {
		return
	}
	g.RefuseStartup(os.Stdout, os.Getenv, reasons)
	os.Exit(2)
}
