package eventstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/storageadapter/fileadapter"
)

func actionEvent(id, agentID string) kontextmodel.Event {
	return kontextmodel.Event{
		ID:          id,
		Timestamp:   time.Now(),
		AgentID:     agentID,
		Type:        kontextmodel.EventAction,
		Digest:      "d-" + id,
		PriorDigest: "p-" + id,
		Action:      &kontextmodel.ActionPayload{ActionType: "noop"},
	}
}

func TestAddEventAndIndexes(t *testing.T) {
	s := eventstore.New(nil)
	ev := actionEvent("e1", "agent-1")
	ev.SessionID = "s1"
	s.AddEvent(ev)

	got, ok := s.GetEvent("e1")
	require.True(t, ok)
	assert.Equal(t, "agent-1", got.AgentID)

	assert.Len(t, s.ByAgent("agent-1"), 1)
	assert.Len(t, s.BySession("s1"), 1)
	assert.Len(t, s.Tasks(), 1)
}

func TestBoundedRetentionEvictsOldest(t *testing.T) {
	s := eventstore.New(nil)
	// One event past the default max (10000) evicts the oldest
	// ceil(10% of 10000) = 1000 events.
	for i := 0; i <= 10000; i++ {
		s.AddEvent(actionEvent(fmt.Sprintf("e%d", i), "agent-1"))
	}
	events := s.Events()
	assert.Len(t, events, 9001)
	assert.Equal(t, "e1000", events[0].ID)
}

func TestLastNByAgentNewestFirst(t *testing.T) {
	s := eventstore.New(nil)
	s.AddEvent(actionEvent("e1", "agent-1"))
	s.AddEvent(actionEvent("e2", "agent-1"))
	s.AddEvent(actionEvent("e3", "agent-1"))

	last := s.LastNByAgent("agent-1", 2)
	require.Len(t, last, 2)
	assert.Equal(t, "e3", last[0].ID)
	assert.Equal(t, "e2", last[1].ID)
}

func TestFlushAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	adapter, err := fileadapter.New(dir)
	require.NoError(t, err)

	s := eventstore.New(adapter)
	s.AddEvent(actionEvent("e1", "agent-1"))
	s.PutSession(&kontextmodel.Session{SessionID: "s1", AgentID: "agent-1", Status: kontextmodel.SessionActive})

	ctx := context.Background()
	require.NoError(t, s.Flush(ctx))

	restored := eventstore.New(adapter)
	require.NoError(t, restored.Restore(ctx))

	assert.Len(t, restored.Events(), 1)
	sess, ok := restored.GetSession("s1")
	require.True(t, ok)
	assert.Equal(t, kontextmodel.SessionActive, sess.Status)
}

func TestRestoreRejectsEventsMissingDigestFields(t *testing.T) {
	dir := t.TempDir()
	adapter, err := fileadapter.New(dir)
	require.NoError(t, err)

	s := eventstore.New(adapter)
	bare := actionEvent("e1", "agent-1")
	bare.Digest = ""
	bare.PriorDigest = ""
	s.AddEvent(bare)
	require.NoError(t, s.Flush(context.Background()))

	restored := eventstore.New(adapter)
	err = restored.Restore(context.Background())
	assert.Error(t, err)
}

func TestConcurrentFlushesCoalesceWithoutError(t *testing.T) {
	dir := t.TempDir()
	adapter, err := fileadapter.New(dir)
	require.NoError(t, err)

	s := eventstore.New(adapter)
	for i := 0; i < 20; i++ {
		s.AddEvent(actionEvent(fmt.Sprintf("e%d", i), "agent-1"))
	}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Flush(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	restored := eventstore.New(adapter)
	require.NoError(t, restored.Restore(context.Background()))
	assert.Len(t, restored.Events(), 20)
}

func TestQueryPredicate(t *testing.T) {
	s := eventstore.New(nil)
	s.AddEvent(actionEvent("e1", "agent-1"))
	s.AddEvent(actionEvent("e2", "agent-2"))

	results := s.Query(func(ev kontextmodel.Event) bool {
		return ev.AgentID == "agent-2"
	})
	require.Len(t, results, 1)
	assert.Equal(t, "e2", results[0].ID)
}
