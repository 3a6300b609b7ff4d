package approval_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/approval"
)

func defaultPolicies() map[approval.PolicyName]*approval.Policy {
	return map[approval.PolicyName]*approval.Policy{
		approval.PolicyAmountThreshold: {Enabled: true, Threshold: decimal.NewFromInt(1000), RequiredEvidence: []string{"tx_hash"}},
		approval.PolicyLowTrustScore:   {Enabled: true, MinScore: 50, RequiredEvidence: []string{"reviewer_id"}},
		approval.PolicyAnomalyDetected: {Enabled: true, MinSeverityRank: 3, RequiredEvidence: []string{"anomaly_review"}},
		approval.PolicyNewDestination:  {Enabled: false},
		approval.PolicyManual:          {Enabled: false},
	}
}

func TestEvaluateReturnsNilWhenNoPolicyTriggers(t *testing.T) {
	e, err := approval.NewEngine(defaultPolicies(), 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(10), TrustScore: 90})
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestEvaluateTriggersAmountThreshold(t *testing.T) {
	e, err := approval.NewEngine(defaultPolicies(), 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(5000), TrustScore: 90})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Contains(t, req.TriggeredBy, approval.PolicyAmountThreshold)
	assert.Contains(t, req.RequiredEvidence, "tx_hash")
	assert.Equal(t, approval.StatusPending, req.Status)
}

func TestManualPolicyAlwaysTriggers(t *testing.T) {
	policies := defaultPolicies()
	policies[approval.PolicyManual].Enabled = true
	policies[approval.PolicyManual].RequiredEvidence = []string{"manual_note"}

	e, err := approval.NewEngine(policies, 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(1), TrustScore: 99})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Contains(t, req.TriggeredBy, approval.PolicyManual)
}

func TestSubmitDecisionRequiresAllEvidenceToApprove(t *testing.T) {
	e, err := approval.NewEngine(defaultPolicies(), 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(5000), TrustScore: 90})
	require.NoError(t, err)
	require.NotNil(t, req)

	_, err = e.SubmitDecision(req.RequestID, true, map[string]any{}, "")
	assert.Error(t, err)

	resolved, err := e.SubmitDecision(req.RequestID, true, map[string]any{"tx_hash": "0xabc"}, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, resolved.Status)
}

func TestSubmitDecisionRejectsExpiredRequest(t *testing.T) {
	now := time.Now()
	clockTime := now
	e, err := approval.NewEngine(defaultPolicies(), time.Minute)
	require.NoError(t, err)
	e.WithClock(func() time.Time { return clockTime })

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(5000), TrustScore: 90})
	require.NoError(t, err)

	clockTime = now.Add(time.Hour)
	_, err = e.SubmitDecision(req.RequestID, true, map[string]any{"tx_hash": "0xabc"}, "")
	assert.Error(t, err)

	got, ok := e.Get(req.RequestID)
	require.True(t, ok)
	assert.Equal(t, approval.StatusExpired, got.Status)
}

func TestRiskScoreCapsAtOneHundred(t *testing.T) {
	e, err := approval.NewEngine(defaultPolicies(), 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{
		AgentID: "agent-1", Amount: decimal.NewFromInt(10000), TrustScore: 10, AnomalySeverity: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 100, req.RiskScore)
}

func TestCELExpressionAdditionallyGatesPolicy(t *testing.T) {
	policies := defaultPolicies()
	policies[approval.PolicyAmountThreshold].CELExpression = `agent_id == "trusted-agent"`

	e, err := approval.NewEngine(policies, 0)
	require.NoError(t, err)

	req, err := e.Evaluate(approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(5000), TrustScore: 90})
	require.NoError(t, err)
	assert.Nil(t, req, "cel expression should suppress the built-in trigger for a non-matching agent")

	req, err = e.Evaluate(approval.Input{AgentID: "trusted-agent", Amount: decimal.NewFromInt(5000), TrustScore: 90})
	require.NoError(t, err)
	require.NotNil(t, req)
}
