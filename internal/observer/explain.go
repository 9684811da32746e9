package observer

import (
	"time"
)

// ExplainPlan reconstructs an Explanation for a single decoded proposal map (as read
// from a proposals NDJSON line, or handed in directly by a caller that already has the
// plan in hand). It never mutates plan and never touches the network.
func ExplainPlan(plan map[string]any, auditDir, decisionsBaseDir string, stdoutLogPaths []string, now time.Time) Explanation {
	exp := Explanation{
		PlanID:        firstStr(plan, "proposal_id", "plan_id"),
		CorrelationID: firstStr(plan, "correlation_id"),
		CreatedAtUTC:  firstStr(plan, "created_at_utc"),
		StrategyName:  firstStr(plan, "strategy_name"),
		AgentName:     firstStr(plan, "agent_name"),
		Side:          firstStr(plan, "side"),
		TimeInForce:   firstStr(plan, "time_in_force"),
		Quantity:      asIntPtr(plan["quantity"]),
		LimitPrice:    asFloatPtr(plan["limit_price"]),
	}

	underlying := firstStr(plan, "symbol", "underlying_symbol")
	exp.UnderlyingSymbol = underlying
	exp.SelectedContract = extractContract(underlying, plan)

	if rationale := asMap(plan["rationale"]); rationale != nil {
		exp.Why = firstStr(rationale, "short_reason", "reason")
		factors := coerceKeyFactors(rationale["indicators"])
		if len(factors) > maxKeyFactors {
			factors = factors[:maxKeyFactors]
		}
		exp.KeyFactors = factors
	}

	exp.Execution = resolveExecutionEvidence(exp.PlanID, decisionsBaseDir, stdoutLogPaths, now)
	if exp.Execution.Decision == "APPROVE" {
		succeeded := true
		exp.ExecutionSucceeded = &succeeded
	} else if exp.Execution.Decision == "REJECT" {
		failed := false
		exp.ExecutionSucceeded = &failed
	}

	exp.Sources = []string{}
	return exp
}

// ExplainLastOptionTrade discovers the most recent OPTION-asset proposal in today's
// audit artifacts and explains it. If none is found it returns a stable empty-shape
// Explanation (zero values, apart from an UNKNOWN execution decision and an empty
// Sources slice) rather than an error, mirroring the original's
// "nothing to explain yet" posture.
func ExplainLastOptionTrade(auditDir, decisionsBaseDir string, stdoutLogPaths []string, now time.Time) Explanation {
	plan, planPath := pickLastOptionProposalFromArtifacts(auditDir, now)
	if plan == nil {
		return Explanation{Execution: ExecutionEvidence{Decision: "UNKNOWN"}, Sources: []string{}}
	}
	exp := ExplainPlan(plan, auditDir, decisionsBaseDir, stdoutLogPaths, now)
	exp.Sources = append(exp.Sources, planPath)
	if exp.Execution.Source != "" {
		exp.Sources = append(exp.Sources, exp.Execution.Source)
	}
	return exp
}

// resolveExecutionEvidence prefers a matching decisions NDJSON record; if none exists
// it falls back to scanning stdout logs; if neither yields anything, the decision is
// reported UNKNOWN rather than guessed at.
func resolveExecutionEvidence(planID, decisionsBaseDir string, stdoutLogPaths []string, now time.Time) ExecutionEvidence {
	if planID == "" {
		return ExecutionEvidence{Decision: "UNKNOWN"}
	}

	if row, path := pickLastExecutionDecisionForProposal(decisionsBaseDir, planID, now); row != nil {
		return ExecutionEvidence{
			Decision:          firstStr(row, "decision"),
			DecidedAtUTC:      firstStr(row, "decided_at_utc"),
			DecisionID:        firstStr(row, "decision_id"),
			RejectReasonCodes: stringSlice(row["reject_reason_codes"]),
			Notes:             firstStr(row, "notes"),
			Source:            path,
		}
	}

	if row, path := searchStdoutLogsForEvidence(stdoutLogPaths, planID); row != nil {
		return ExecutionEvidence{
			Decision:          firstStr(row, "decision"),
			DecidedAtUTC:      firstStr(row, "decided_at_utc"),
			DecisionID:        firstStr(row, "decision_id"),
			RejectReasonCodes: stringSlice(row["reject_reason_codes"]),
			Notes:             firstStr(row, "notes"),
			Source:            "stdout_logs:" + path,
		}
	}

	return ExecutionEvidence{Decision: "UNKNOWN"}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asStr(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
