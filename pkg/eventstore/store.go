// Package eventstore implements the append-only Event Store (C3): typed
// collections, secondary indexes, bounded retention/eviction, and
// flush/restore against a pluggable storage adapter. Grounded on the
// teacher's store.AuditStore (entryByID/entryByHash secondary indexes,
// RWMutex-guarded collections) and store/ledger.FileLedger's snapshot/save
// split for I/O.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kontext-systems/audit-core/pkg/kerrors"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/storageadapter"
)

const (
	keyEvents       = "kontext:events"
	keyTransactions = "kontext:transactions"
	keyTasks        = "kontext:tasks"
	keyAnomalies    = "kontext:anomalies"
	keySessions     = "kontext:sessions"
	keyCheckpoints  = "kontext:checkpoints"
)

// Store owns all events, sessions, and checkpoints. The Digest Chain never
// owns event bodies — only the (digest, prior_digest, salt, event_id)
// link list — so Store is the single source of truth a caller reads back.
type Store struct {
	mu sync.RWMutex

	events       *boundedList
	transactions *boundedList
	tasks        *boundedList
	anomalies    *boundedList

	sessions    map[string]*kontextmodel.Session
	checkpoints map[string]*kontextmodel.Checkpoint

	byAgent   map[string][]string // agent_id -> ordered event ids
	bySession map[string][]string // session_id -> ordered event ids
	byID      map[string]kontextmodel.Event

	adapter storageadapter.Adapter
	log     *slog.Logger

	// flushGroup collapses concurrent Flush calls into a single in-flight
	// I/O operation: the single-slot in-flight flush flag of the
	// concurrency model.
	flushGroup singleflight.Group
}

// New constructs an empty store. adapter may be nil; Flush/Restore then
// report a storage error rather than panicking.
func New(adapter storageadapter.Adapter) *Store {
	return &Store{
		events:       newBoundedList(defaultMaxSize),
		transactions: newBoundedList(defaultMaxSize),
		tasks:        newBoundedList(defaultMaxSize),
		anomalies:    newBoundedList(defaultMaxSize),
		sessions:     make(map[string]*kontextmodel.Session),
		checkpoints:  make(map[string]*kontextmodel.Checkpoint),
		byAgent:      make(map[string][]string),
		bySession:    make(map[string][]string),
		byID:         make(map[string]kontextmodel.Event),
		adapter:      adapter,
		log:          slog.Default().With("component", "eventstore"),
	}
}

// AddEvent records a fully-chained event (digest/prior_digest/salt already
// set) and maintains the by-agent, by-session, and type-specific indexes.
func (s *Store) AddEvent(ev kontextmodel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evicted := s.events.add(ev); evicted > 0 {
		s.log.Warn("event collection evicted oldest entries",
			"collection", "events", "evicted", evicted)
	}
	s.byID[ev.ID] = ev
	s.byAgent[ev.AgentID] = append(s.byAgent[ev.AgentID], ev.ID)
	if ev.SessionID != "" {
		s.bySession[ev.SessionID] = append(s.bySession[ev.SessionID], ev.ID)
	}

	switch ev.Type {
	case kontextmodel.EventTransaction:
		if evicted := s.transactions.add(ev); evicted > 0 {
			s.log.Warn("event collection evicted oldest entries",
				"collection", "transactions", "evicted", evicted)
		}
	case kontextmodel.EventAction:
		if evicted := s.tasks.add(ev); evicted > 0 {
			s.log.Warn("event collection evicted oldest entries",
				"collection", "tasks", "evicted", evicted)
		}
	case kontextmodel.EventAnomaly:
		if evicted := s.anomalies.add(ev); evicted > 0 {
			s.log.Warn("event collection evicted oldest entries",
				"collection", "anomalies", "evicted", evicted)
		}
	}
}

// GetEvent returns the event with the given id.
func (s *Store) GetEvent(id string) (kontextmodel.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.byID[id]
	return ev, ok
}

// Events returns a snapshot of all retained events, oldest first.
func (s *Store) Events() []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.snapshot()
}

// ByAgent returns retained events for agentID, oldest first.
func (s *Store) ByAgent(agentID string) []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAgent[agentID]
	out := make([]kontextmodel.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := s.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// BySession returns retained events for sessionID, oldest first.
func (s *Store) BySession(sessionID string) []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySession[sessionID]
	out := make([]kontextmodel.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := s.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Query returns retained events matching predicate, oldest first.
func (s *Store) Query(predicate func(kontextmodel.Event) bool) []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []kontextmodel.Event
	for _, ev := range s.events.entries {
		if predicate(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// LastNByAgent returns the most recent n retained events for agentID,
// newest first.
func (s *Store) LastNByAgent(agentID string, n int) []kontextmodel.Event {
	all := s.ByAgent(agentID)
	if n > len(all) {
		n = len(all)
	}
	out := make([]kontextmodel.Event, n)
	for i := 0; i < n; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out
}

// Transactions returns retained transaction-typed events.
func (s *Store) Transactions() []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.snapshot()
}

// Tasks returns retained action-typed events.
func (s *Store) Tasks() []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.snapshot()
}

// Anomalies returns retained anomaly-typed events.
func (s *Store) Anomalies() []kontextmodel.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anomalies.snapshot()
}

// PutSession upserts a session.
func (s *Store) PutSession(sess *kontextmodel.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(id string) (*kontextmodel.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Sessions returns a snapshot of all sessions.
func (s *Store) Sessions() []*kontextmodel.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*kontextmodel.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// PutCheckpoint upserts a checkpoint.
func (s *Store) PutCheckpoint(cp *kontextmodel.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.CheckpointID] = cp
}

// GetCheckpoint returns the checkpoint with the given id.
func (s *Store) GetCheckpoint(id string) (*kontextmodel.Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	return cp, ok
}

// Checkpoints returns a snapshot of all checkpoints.
func (s *Store) Checkpoints() []*kontextmodel.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*kontextmodel.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, cp)
	}
	return out
}

// Flush takes a synchronous snapshot of each collection under the read
// lock, then performs I/O against the adapter without the lock held, per
// the suspension-point rule: flush/restore are the only I/O-bearing
// operations. Concurrent callers collapse onto one in-flight flush via
// flushGroup rather than racing duplicate writes at the adapter.
func (s *Store) Flush(ctx context.Context) error {
	_, err, _ := s.flushGroup.Do("flush", func() (any, error) {
		return nil, s.flush(ctx)
	})
	return err
}

func (s *Store) flush(ctx context.Context) error {
	if s.adapter == nil {
		return kerrors.StorageIO("flush", fmt.Errorf("no storage adapter configured"))
	}

	s.mu.RLock()
	events := s.events.snapshot()
	transactions := s.transactions.snapshot()
	tasks := s.tasks.snapshot()
	anomalies := s.anomalies.snapshot()
	sessions := make(map[string]*kontextmodel.Session, len(s.sessions))
	for k, v := range s.sessions {
		sessions[k] = v
	}
	checkpoints := make(map[string]*kontextmodel.Checkpoint, len(s.checkpoints))
	for k, v := range s.checkpoints {
		checkpoints[k] = v
	}
	s.mu.RUnlock()

	saves := []struct {
		key string
		v   any
	}{
		{keyEvents, events},
		{keyTransactions, transactions},
		{keyTasks, tasks},
		{keyAnomalies, anomalies},
		{keySessions, sessions},
		{keyCheckpoints, checkpoints},
	}

	for _, item := range saves {
		data, err := json.Marshal(item.v)
		if err != nil {
			return kerrors.StorageIO("flush", err)
		}
		if err := s.adapter.Save(ctx, item.key, data); err != nil {
			return kerrors.StorageIO("flush", err)
		}
	}
	return nil
}

// Restore loads each well-known key and replaces in-memory collections
// atomically, rebuilding indexes from the loaded data. On a storage error
// the store is left empty and the caller's chain should be reset to
// GENESIS — restoring a store with a stale chain terminal is a programmer
// error the caller must avoid by restoring both together.
func (s *Store) Restore(ctx context.Context) (err error) {
	defer func() {
		if err == nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, b := range []*boundedList{s.events, s.transactions, s.tasks, s.anomalies} {
			b.replace(nil)
		}
		s.sessions = make(map[string]*kontextmodel.Session)
		s.checkpoints = make(map[string]*kontextmodel.Checkpoint)
		s.byID = make(map[string]kontextmodel.Event)
		s.byAgent = make(map[string][]string)
		s.bySession = make(map[string][]string)
	}()

	if s.adapter == nil {
		return kerrors.StorageIO("restore", fmt.Errorf("no storage adapter configured"))
	}

	events, err := loadEvents(ctx, s.adapter, keyEvents)
	if err != nil {
		return err
	}
	sessions, err := loadSessions(ctx, s.adapter, keySessions)
	if err != nil {
		return err
	}
	checkpoints, err := loadCheckpoints(ctx, s.adapter, keyCheckpoints)
	if err != nil {
		return err
	}

	for i, ev := range events {
		if ev.Digest == "" || ev.PriorDigest == "" {
			return kerrors.ChainMismatch(i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.replace(events)
	s.transactions.replace(filterType(events, kontextmodel.EventTransaction))
	s.tasks.replace(filterType(events, kontextmodel.EventAction))
	s.anomalies.replace(filterType(events, kontextmodel.EventAnomaly))

	s.sessions = sessions
	s.checkpoints = checkpoints
	s.byID = make(map[string]kontextmodel.Event, len(events))
	s.byAgent = make(map[string][]string)
	s.bySession = make(map[string][]string)
	for _, ev := range events {
		s.byID[ev.ID] = ev
		s.byAgent[ev.AgentID] = append(s.byAgent[ev.AgentID], ev.ID)
		if ev.SessionID != "" {
			s.bySession[ev.SessionID] = append(s.bySession[ev.SessionID], ev.ID)
		}
	}
	return nil
}

func filterType(events []kontextmodel.Event, t kontextmodel.EventType) []kontextmodel.Event {
	var out []kontextmodel.Event
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func loadEvents(ctx context.Context, adapter storageadapter.Adapter, key string) ([]kontextmodel.Event, error) {
	data, err := adapter.Load(ctx, key)
	if errors.Is(err, storageadapter.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	var events []kontextmodel.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	return events, nil
}

func loadSessions(ctx context.Context, adapter storageadapter.Adapter, key string) (map[string]*kontextmodel.Session, error) {
	data, err := adapter.Load(ctx, key)
	if errors.Is(err, storageadapter.ErrNotFound) {
		return make(map[string]*kontextmodel.Session), nil
	}
	if err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	sessions := make(map[string]*kontextmodel.Session)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	return sessions, nil
}

func loadCheckpoints(ctx context.Context, adapter storageadapter.Adapter, key string) (map[string]*kontextmodel.Checkpoint, error) {
	data, err := adapter.Load(ctx, key)
	if errors.Is(err, storageadapter.ErrNotFound) {
		return make(map[string]*kontextmodel.Checkpoint), nil
	}
	if err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	checkpoints := make(map[string]*kontextmodel.Checkpoint)
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, kerrors.StorageIO("restore", err)
	}
	return checkpoints, nil
}
