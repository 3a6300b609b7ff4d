// Package approval implements the Approval Engine (C8): a typed policy
// table evaluated against a proposed transaction, grounded on the
// teacher's pkg/receipts/policies/enforcer.go PolicyEnforcer (policy
// table keyed by type, required-evidence checking) and pkg/escalation's
// TTL/expiry and lazy-timeout handling. An optional CEL expression per
// policy, compiled once at NewEngine time following
// pkg/governance/policy_engine.go's cel.NewEnv pattern, lets callers gate
// a policy with custom logic beyond its typed parameters.
package approval

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicyName identifies one of the five built-in policies.
type PolicyName string

const (
	PolicyAmountThreshold PolicyName = "amount-threshold"
	PolicyLowTrustScore   PolicyName = "low-trust-score"
	PolicyAnomalyDetected PolicyName = "anomaly-detected"
	PolicyNewDestination  PolicyName = "new-destination"
	PolicyManual          PolicyName = "manual"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Policy configures one policy's parameters, enabled flag, and the
// evidence keys it requires before a decision can approve a request.
// CELExpression, if non-empty, is compiled once at registration and
// additionally gates whether the policy triggers.
type Policy struct {
	Enabled          bool
	Threshold        decimal.Decimal // amount-threshold
	MinScore         float64         // low-trust-score
	MinSeverityRank  int             // anomaly-detected: 1=low .. 4=critical
	RequiredEvidence []string
	CELExpression    string
	program          cel.Program
}

// DefaultTTL is the default approval request lifetime.
const DefaultTTL = time.Hour

// Input is the proposed transaction evaluated against the policy table.
type Input struct {
	AgentID          string
	Amount           decimal.Decimal
	TrustScore       float64
	AnomalySeverity  int // highest unreviewed anomaly severity rank for this agent, 0 if none
	IsNewDestination bool
	Vars             map[string]any // additional CEL evaluation context
}

// Request is a pending or resolved approval request.
type Request struct {
	RequestID        string
	AgentID          string
	TriggeredBy      []PolicyName
	RequiredEvidence []string
	RiskScore        int
	Status           Status
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Decision         string
	DecisionReason   string
	Evidence         map[string]any
}

// Engine evaluates the policy table and tracks approval requests.
type Engine struct {
	mu       sync.Mutex
	env      *cel.Env
	policies map[PolicyName]*Policy
	ttl      time.Duration
	clock    func() time.Time
	requests map[string]*Request
}

// NewEngine constructs an Engine with the given policy table, compiling
// any CEL expressions against a fixed variable set (amount, trust_score,
// anomaly_severity, is_new_destination, agent_id, vars).
func NewEngine(policies map[PolicyName]*Policy, ttl time.Duration) (*Engine, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("trust_score", cel.DoubleType),
		cel.Variable("anomaly_severity", cel.IntType),
		cel.Variable("is_new_destination", cel.BoolType),
		cel.Variable("agent_id", cel.StringType),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("approval: cel env: %w", err)
	}

	e := &Engine{env: env, policies: make(map[PolicyName]*Policy), ttl: ttl, clock: time.Now, requests: make(map[string]*Request)}
	for name, p := range policies {
		if p.CELExpression != "" {
			ast, issues := env.Compile(p.CELExpression)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("approval: compiling policy %s: %w", name, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("approval: program for policy %s: %w", name, err)
			}
			p.program = prg
		}
		e.policies[name] = p
	}
	return e, nil
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Evaluate runs every enabled policy against input. If any trigger, a
// pending Request is created and returned; otherwise it returns nil.
func (e *Engine) Evaluate(input Input) (*Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var triggered []PolicyName
	evidenceSet := make(map[string]bool)
	lowTrustFired, anomalyFired := false, false

	for _, name := range []PolicyName{PolicyAmountThreshold, PolicyLowTrustScore, PolicyAnomalyDetected, PolicyNewDestination, PolicyManual} {
		p, ok := e.policies[name]
		if !ok || !p.Enabled {
			continue
		}
		fires, err := e.policyFires(name, p, input)
		if err != nil {
			return nil, err
		}
		if !fires {
			continue
		}
		triggered = append(triggered, name)
		for _, k := range p.RequiredEvidence {
			evidenceSet[k] = true
		}
		switch name {
		case PolicyLowTrustScore:
			lowTrustFired = true
		case PolicyAnomalyDetected:
			anomalyFired = true
		}
	}

	if len(triggered) == 0 {
		return nil, nil
	}

	requiredEvidence := make([]string, 0, len(evidenceSet))
	for k := range evidenceSet {
		requiredEvidence = append(requiredEvidence, k)
	}

	riskScore := riskScoreFor(len(triggered), input.Amount, lowTrustFired, anomalyFired)

	now := e.clock()
	req := &Request{
		RequestID:        uuid.NewString(),
		AgentID:          input.AgentID,
		TriggeredBy:      triggered,
		RequiredEvidence: requiredEvidence,
		RiskScore:        riskScore,
		Status:           StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(e.ttl),
	}
	e.requests[req.RequestID] = req
	return req, nil
}

func (e *Engine) policyFires(name PolicyName, p *Policy, input Input) (bool, error) {
	var builtin bool
	switch name {
	case PolicyAmountThreshold:
		builtin = !p.Threshold.IsZero() && input.Amount.GreaterThan(p.Threshold)
	case PolicyLowTrustScore:
		builtin = input.TrustScore < p.MinScore
	case PolicyAnomalyDetected:
		builtin = input.AnomalySeverity >= p.MinSeverityRank && p.MinSeverityRank > 0
	case PolicyNewDestination:
		builtin = input.IsNewDestination
	case PolicyManual:
		builtin = true
	}

	if p.program == nil {
		return builtin, nil
	}

	amount, _ := input.Amount.Float64()
	vars := map[string]any{
		"amount":             amount,
		"trust_score":        input.TrustScore,
		"anomaly_severity":   input.AnomalySeverity,
		"is_new_destination": input.IsNewDestination,
		"agent_id":           input.AgentID,
		"vars":               input.Vars,
	}
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("approval: evaluating policy %s: %w", name, err)
	}
	celFires, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("approval: policy %s expression did not evaluate to bool", name)
	}
	return builtin && celFires, nil
}

// riskScoreFor implements risk_score = min(100, 25*triggered_count +
// 20*amount + 30*low_trust + 25*anomaly), where amount contributes its
// value in whole units (capped implicitly by the overall min) and
// low_trust/anomaly are 0/1 indicators.
func riskScoreFor(triggeredCount int, amount decimal.Decimal, lowTrust, anomaly bool) int {
	score := 25 * triggeredCount
	amountFloat, _ := amount.Float64()
	score += int(20 * amountFloat)
	if lowTrust {
		score += 30
	}
	if anomaly {
		score += 25
	}
	if score > 100 {
		score = 100
	}
	return score
}

// SubmitDecision resolves a pending, unexpired request. Approving
// requires every required_evidence key to be present and non-nil.
func (e *Engine) SubmitDecision(requestID string, approved bool, evidence map[string]any, reason string) (*Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("approval: request %q not found", requestID)
	}
	if req.Status != StatusPending {
		return nil, fmt.Errorf("approval: request %q is %s, not pending", requestID, req.Status)
	}
	now := e.clock()
	if now.After(req.ExpiresAt) {
		req.Status = StatusExpired
		return nil, fmt.Errorf("approval: request %q has expired", requestID)
	}

	if approved {
		for _, key := range req.RequiredEvidence {
			v, present := evidence[key]
			if !present || v == nil {
				return nil, fmt.Errorf("approval: missing required evidence %q", key)
			}
		}
		req.Status = StatusApproved
		req.Decision = "approved"
	} else {
		req.Status = StatusRejected
		req.Decision = "rejected"
	}
	req.DecisionReason = reason
	req.Evidence = evidence
	return req, nil
}

// Get returns a request by id, applying lazy expiry on read.
func (e *Engine) Get(requestID string) (*Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[requestID]
	if !ok {
		return nil, false
	}
	if req.Status == StatusPending && e.clock().After(req.ExpiresAt) {
		req.Status = StatusExpired
	}
	return req, true
}
