// Package compliance implements the Compliance Verifier (C6): a pure,
// ordered check evaluator grounded on the teacher's
// pkg/trust/compliance.go ComplianceMatrix/Control severity model and
// pkg/governance/policy_engine.go's ordered, fail-closed evaluation
// shape, generalized to a fixed Go check list rather than a CEL DSL
// since this verifier is deterministic rather than user-authored.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/provenance"
	"github.com/kontext-systems/audit-core/pkg/sanctions"
)

// Severity levels, ordered low to critical.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Input is a proposed transaction to verify for compliance.
type Input struct {
	Hash      string
	Chain     string
	Amount    string
	Token     string
	From      string
	To        string
	AgentID   string
	SessionID string // optional
}

// Verdict is the ordered check results plus the overall determination.
type Verdict struct {
	Checks    []kontextmodel.CheckResult `json:"checks"`
	Compliant bool                       `json:"compliant"`
	RiskLevel string                     `json:"risk_level"`
}

// Config parameterizes the verifier's configurable thresholds.
type Config struct {
	AmountThreshold decimal.Decimal // zero means no threshold configured
	AnomalyWindow   time.Duration
}

// Verifier evaluates compliance checks and logs both the verdict and
// the underlying transaction as chained events.
type Verifier struct {
	cfg        Config
	sanctions  *sanctions.Index
	provenance *provenance.Manager
	store      *eventstore.Store
	logger     *kontextlog.Logger
}

// New constructs a Verifier wired to its collaborators.
func New(cfg Config, sanctionsIdx *sanctions.Index, prov *provenance.Manager, store *eventstore.Store, logger *kontextlog.Logger) *Verifier {
	return &Verifier{cfg: cfg, sanctions: sanctionsIdx, provenance: prov, store: store, logger: logger}
}

// Verify runs the ordered check series against input, then emits a
// verify-result event followed immediately by a transaction event, both
// within the same logger call sequence so the verdict precedes the
// transaction it authorizes in chain order.
func (v *Verifier) Verify(input Input) (Verdict, error) {
	checks := []kontextmodel.CheckResult{
		v.checkSanctions(input),
		v.checkAmountThreshold(input),
	}
	if input.SessionID != "" {
		checks = append(checks, v.checkSessionScope(input), v.checkSessionConstraints(input))
	}
	checks = append(checks, v.checkRecentAnomalies(input))

	compliant := true
	riskLevel := SeverityLow
	riskRank := 0
	for _, c := range checks {
		if !c.Passed && (c.Severity == SeverityHigh || c.Severity == SeverityCritical) {
			compliant = false
		}
		if !c.Passed {
			if rank := severityRank[c.Severity]; rank > riskRank {
				riskRank = rank
				riskLevel = c.Severity
			}
		}
	}

	verdict := Verdict{Checks: checks, Compliant: compliant, RiskLevel: riskLevel}

	_, err := v.logger.Log(kontextlog.Input{
		AgentID:     input.AgentID,
		SessionID:   input.SessionID,
		Type:        kontextmodel.EventVerifyResult,
		Description: "compliance verify result",
		Verify: &kontextmodel.VerifyPayload{
			Checks:    checks,
			Compliant: compliant,
			RiskLevel: riskLevel,
		},
	})
	if err != nil {
		return Verdict{}, err
	}

	_, err = v.logger.Log(kontextlog.Input{
		AgentID:     input.AgentID,
		SessionID:   input.SessionID,
		Type:        kontextmodel.EventTransaction,
		Description: "transaction",
		Transaction: &kontextmodel.TransactionPayload{
			TxHash: input.Hash,
			Chain:  input.Chain,
			Amount: input.Amount,
			Token:  input.Token,
			From:   input.From,
			To:     input.To,
		},
	})
	if err != nil {
		return Verdict{}, err
	}

	return verdict, nil
}

func (v *Verifier) checkSanctions(input Input) kontextmodel.CheckResult {
	fromSanctioned := v.sanctions.IsSanctioned(input.From, input.Chain)
	toSanctioned := v.sanctions.IsSanctioned(input.To, input.Chain)
	passed := !fromSanctioned && !toSanctioned
	desc := "neither party appears on the sanctions index"
	if !passed {
		desc = "a party to this transaction appears on the sanctions index"
	}
	return kontextmodel.CheckResult{Name: "sanctions_check", Passed: passed, Severity: SeverityCritical, Description: desc}
}

func (v *Verifier) checkAmountThreshold(input Input) kontextmodel.CheckResult {
	if v.cfg.AmountThreshold.IsZero() {
		return kontextmodel.CheckResult{Name: "amount_threshold", Passed: true, Severity: SeverityLow, Description: "no amount threshold configured"}
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return kontextmodel.CheckResult{Name: "amount_threshold", Passed: false, Severity: SeverityHigh, Description: "amount could not be parsed as a decimal"}
	}
	if amount.GreaterThan(v.cfg.AmountThreshold) {
		return kontextmodel.CheckResult{Name: "amount_threshold", Passed: false, Severity: SeverityHigh, Description: "amount exceeds the configured threshold"}
	}
	return kontextmodel.CheckResult{Name: "amount_threshold", Passed: true, Severity: SeverityLow, Description: "amount is within the configured threshold"}
}

func (v *Verifier) checkSessionScope(input Input) kontextmodel.CheckResult {
	if v.provenance.ValidateScope(input.SessionID, "transfer") {
		return kontextmodel.CheckResult{Name: "session_scope", Passed: true, Severity: SeverityLow, Description: "session scope permits transfer"}
	}
	return kontextmodel.CheckResult{Name: "session_scope", Passed: false, Severity: SeverityHigh, Description: "session is not active or lacks transfer scope"}
}

func (v *Verifier) checkSessionConstraints(input Input) kontextmodel.CheckResult {
	amount, chain, token, to := input.Amount, input.Chain, input.Token, input.To
	ok := v.provenance.ValidateConstraints(input.SessionID, provenance.ConstraintCheck{
		Amount: &amount, Chain: &chain, Token: &token, To: &to,
	})
	if ok {
		return kontextmodel.CheckResult{Name: "session_constraints", Passed: true, Severity: SeverityLow, Description: "transaction satisfies the session's delegated constraints"}
	}
	return kontextmodel.CheckResult{Name: "session_constraints", Passed: false, Severity: SeverityHigh, Description: "transaction violates the session's delegated constraints"}
}

// checkRecentAnomalies looks for anomaly events for agent_id within the
// configured window that have not been referenced by any attested
// checkpoint, since this core models human review through checkpoint
// attestation rather than a separate anomaly-review flag.
func (v *Verifier) checkRecentAnomalies(input Input) kontextmodel.CheckResult {
	if v.cfg.AnomalyWindow <= 0 {
		return kontextmodel.CheckResult{Name: "recent_anomaly_context", Passed: true, Severity: SeverityLow, Description: "no anomaly window configured"}
	}
	reviewed := make(map[string]bool)
	for _, cp := range v.store.Checkpoints() {
		if cp.Status != kontextmodel.CheckpointAttested {
			continue
		}
		for _, id := range cp.ActionIDs {
			reviewed[id] = true
		}
	}

	cutoff := time.Now().Add(-v.cfg.AnomalyWindow)
	for _, ev := range v.store.Anomalies() {
		if ev.AgentID != input.AgentID {
			continue
		}
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		if reviewed[ev.ID] {
			continue
		}
		return kontextmodel.CheckResult{Name: "recent_anomaly_context", Passed: false, Severity: SeverityMedium, Description: "unreviewed anomalies exist for this agent in the configured window"}
	}
	return kontextmodel.CheckResult{Name: "recent_anomaly_context", Passed: true, Severity: SeverityLow, Description: "no unreviewed anomalies for this agent in the configured window"}
}
