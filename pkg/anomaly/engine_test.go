package anomaly_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/anomaly"
	"github.com/kontext-systems/audit-core/pkg/chain"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

func newEngine(cfg anomaly.Config) (*anomaly.Engine, *eventstore.Store) {
	c := chain.New(time.Time{})
	s := eventstore.New(nil)
	l := kontextlog.New(c, s, nil)
	return anomaly.New(cfg, l), s
}

func tx(agentID, to, amount string) anomaly.TransactionInput {
	return anomaly.TransactionInput{AgentID: agentID, Chain: "base", Amount: amount, Token: "USDC", From: "a", To: to}
}

func TestUnusualAmountFires(t *testing.T) {
	e, _ := newEngine(anomaly.Config{MaxAmount: decimal.NewFromInt(1000)})
	fired, err := e.Evaluate(tx("agent-1", "dest-1", "5000"))
	require.NoError(t, err)
	// dest-1 is also a first-time destination, so new_destination fires too.
	require.Len(t, fired, 2)
	assert.Equal(t, "unusual_amount", fired[0].Anomaly.Rule)
}

func TestNewDestinationFiresOnlyOnce(t *testing.T) {
	e, _ := newEngine(anomaly.Config{})
	fired, err := e.Evaluate(tx("agent-1", "dest-1", "10"))
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "new_destination", fired[0].Anomaly.Rule)

	fired, err = e.Evaluate(tx("agent-1", "dest-1", "10"))
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestRapidSuccessionUsesInjectedClock(t *testing.T) {
	now := time.Now()
	clockTime := now
	e, _ := newEngine(anomaly.Config{MinIntervalSeconds: 60})
	e.WithClock(func() time.Time { return clockTime })

	_, err := e.Evaluate(tx("agent-1", "dest-1", "10"))
	require.NoError(t, err)

	clockTime = now.Add(5 * time.Second)
	fired, err := e.Evaluate(tx("agent-1", "dest-2", "10"))
	require.NoError(t, err)

	var names []string
	for _, ev := range fired {
		names = append(names, ev.Anomaly.Rule)
	}
	assert.Contains(t, names, "rapid_succession")
}

func TestRoundAmountFiresAtOrAboveStructuringThreshold(t *testing.T) {
	e, _ := newEngine(anomaly.Config{StructuringAmount: decimal.NewFromInt(500)})
	fired, err := e.Evaluate(tx("agent-1", "dest-1", "600"))
	require.NoError(t, err)

	var names []string
	for _, ev := range fired {
		names = append(names, ev.Anomaly.Rule)
	}
	assert.Contains(t, names, "round_amount")
}

func TestRoundAmountDoesNotFireBelowThreshold(t *testing.T) {
	e, _ := newEngine(anomaly.Config{StructuringAmount: decimal.NewFromInt(500)})
	fired, err := e.Evaluate(tx("agent-1", "dest-1", "200"))
	require.NoError(t, err)

	for _, ev := range fired {
		assert.NotEqual(t, "round_amount", ev.Anomaly.Rule)
	}
}

func TestOffHoursUsesConfiguredUTCWindow(t *testing.T) {
	now := time.Date(2026, 7, 29, 3, 0, 0, 0, time.UTC)
	e, _ := newEngine(anomaly.Config{OffHours: map[int]bool{3: true}})
	e.WithClock(func() time.Time { return now })

	fired, err := e.Evaluate(tx("agent-1", "dest-1", "10"))
	require.NoError(t, err)

	var names []string
	for _, ev := range fired {
		names = append(names, ev.Anomaly.Rule)
	}
	assert.Contains(t, names, "off_hours")
}

func TestCallbackFiresAfterAnomalyAppended(t *testing.T) {
	e, s := newEngine(anomaly.Config{MaxAmount: decimal.NewFromInt(100)})

	var seenIDs []string
	e.Subscribe(func(ev kontextmodel.Event) {
		seenIDs = append(seenIDs, ev.ID)
	})

	fired, err := e.Evaluate(tx("agent-1", "dest-1", "1000"))
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, []string{fired[0].ID}, seenIDs)

	stored, ok := s.GetEvent(fired[0].ID)
	require.True(t, ok)
	assert.Equal(t, "unusual_amount", stored.Anomaly.Rule)
}

func TestRulesEvaluateInFixedOrder(t *testing.T) {
	e, _ := newEngine(anomaly.Config{
		MaxAmount:         decimal.NewFromInt(100),
		StructuringAmount: decimal.NewFromInt(100),
	})
	fired, err := e.Evaluate(tx("agent-1", "dest-1", "500"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(fired), 2)
	assert.Equal(t, "unusual_amount", fired[0].Anomaly.Rule)
	assert.Equal(t, "new_destination", fired[1].Anomaly.Rule)
}
