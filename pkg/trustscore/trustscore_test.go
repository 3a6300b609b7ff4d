package trustscore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/chain"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/trustscore"
)

func newLogger() (*kontextlog.Logger, *eventstore.Store) {
	c := chain.New(time.Time{})
	s := eventstore.New(nil)
	return kontextlog.New(c, s, nil), s
}

func TestComputeIsPureAndDeterministic(t *testing.T) {
	l, s := newLogger()
	_, err := l.Log(kontextlog.Input{AgentID: "agent-1", Type: kontextmodel.EventAction, Action: &kontextmodel.ActionPayload{ActionType: "noop", Status: "confirmed"}})
	require.NoError(t, err)

	first := trustscore.Compute(s, "agent-1")
	second := trustscore.Compute(s, "agent-1")
	assert.Equal(t, first, second)
}

func TestComputeScoresBoundedToOneHundred(t *testing.T) {
	l, s := newLogger()
	for i := 0; i < 10; i++ {
		_, err := l.Log(kontextlog.Input{AgentID: "agent-1", Type: kontextmodel.EventAction, Action: &kontextmodel.ActionPayload{ActionType: "noop", Status: "confirmed"}})
		require.NoError(t, err)
	}

	score := trustscore.Compute(s, "agent-1")
	assert.GreaterOrEqual(t, score.Overall, 0.0)
	assert.LessOrEqual(t, score.Overall, 100.0)
	for _, v := range score.Breakdown {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestFailedTasksLowerTaskRatioFactor(t *testing.T) {
	l, s := newLogger()
	for i := 0; i < 5; i++ {
		_, err := l.Log(kontextlog.Input{AgentID: "agent-1", Type: kontextmodel.EventAction, Action: &kontextmodel.ActionPayload{ActionType: "noop", Status: "confirmed"}})
		require.NoError(t, err)
	}
	goodScore := trustscore.Compute(s, "agent-1")

	l2, s2 := newLogger()
	for i := 0; i < 5; i++ {
		_, err := l2.Log(kontextlog.Input{AgentID: "agent-1", Type: kontextmodel.EventAction, Action: &kontextmodel.ActionPayload{ActionType: "noop", Status: "failed"}})
		require.NoError(t, err)
	}
	badScore := trustscore.Compute(s2, "agent-1")

	assert.Greater(t, goodScore.Breakdown["task_ratio"], badScore.Breakdown["task_ratio"])
}

func TestAnomaliesLowerAnomalyFactor(t *testing.T) {
	l, s := newLogger()
	clean := trustscore.Compute(s, "agent-1")

	for i := 0; i < 3; i++ {
		_, err := l.Log(kontextlog.Input{AgentID: "agent-1", Type: kontextmodel.EventAnomaly, Anomaly: &kontextmodel.AnomalyPayload{Rule: "unusual_amount", Severity: "medium"}})
		require.NoError(t, err)
	}
	withAnomalies := trustscore.Compute(s, "agent-1")

	assert.Less(t, withAnomalies.Breakdown["anomaly_count"], clean.Breakdown["anomaly_count"])
}

func TestEmptyAgentHistoryYieldsNeutralDefaults(t *testing.T) {
	_, s := newLogger()
	score := trustscore.Compute(s, "agent-unknown")
	assert.Equal(t, 100.0, score.Breakdown["task_ratio"])
	assert.Equal(t, 100.0, score.Breakdown["compliance_adhere"])
	assert.Equal(t, 0.0, score.Breakdown["action_volume"])
}
