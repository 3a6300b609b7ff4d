// Package kontextlog implements the Logger (C4): the single append entry
// point that validates a log input, assigns identity/timestamp, and drives
// an event atomically through the Serializer, Digest Chain, and Event
// Store, grounded on the teacher's audit.StoreLogger composition (Logger
// wraps a Store, Record builds an Event, then Store.Append chains it).
package kontextlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kontext-systems/audit-core/pkg/chain"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kerrors"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// Input is the unchained request to append a new event; Logger fills in
// ID, Timestamp, and CorrelationID when absent.
type Input struct {
	ID            string
	CorrelationID string
	ProjectID     string
	AgentID       string
	SessionID     string
	Type          kontextmodel.EventType
	Description   string

	Action       *kontextmodel.ActionPayload
	Transaction  *kontextmodel.TransactionPayload
	Reasoning    *kontextmodel.ReasoningPayload
	Anomaly      *kontextmodel.AnomalyPayload
	SessionDelta *kontextmodel.SessionDeltaPayload
	Checkpoint   *kontextmodel.CheckpointPayload
	Verify       *kontextmodel.VerifyPayload
}

// Logger is the single append entry point. Its Log sequence (capture
// precision timestamp -> serialize -> hash -> push link -> write digest
// back onto event -> insert into Store) runs under a single-writer
// discipline, matching the mutex-guarded append critical section the
// concurrency model requires.
type Logger struct {
	mu       sync.Mutex
	chain    *chain.Chain
	store    *eventstore.Store
	exporter *queuedExporter
}

// New constructs a Logger over c and s. If exporter is non-nil, every
// successfully logged event is handed to it asynchronously, best-effort.
func New(c *chain.Chain, s *eventstore.Store, exporter Exporter) *Logger {
	l := &Logger{chain: c, store: s}
	if exporter != nil {
		l.exporter = newQueuedExporter(exporter, 256)
	}
	return l
}

// Log validates input, assigns identity fields, chains the event, stores
// it, and fires the exporter, returning the fully-chained event.
func (l *Logger) Log(input Input) (kontextmodel.Event, error) {
	if err := l.validate(input); err != nil {
		return kontextmodel.Event{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A session-start event is logged before its session is stored, so
	// only later events are checked against the session's status.
	if input.SessionID != "" && input.Type != kontextmodel.EventSessionStart {
		if err := l.checkSessionActive(input.SessionID); err != nil {
			return kontextmodel.Event{}, err
		}
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	correlationID := input.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	ev := kontextmodel.Event{
		ID:            id,
		Timestamp:     time.Now().UTC(),
		ProjectID:     input.ProjectID,
		AgentID:       input.AgentID,
		SessionID:     input.SessionID,
		CorrelationID: correlationID,
		Type:          input.Type,
		Description:   input.Description,
		Action:        input.Action,
		Transaction:   input.Transaction,
		Reasoning:     input.Reasoning,
		Anomaly:       input.Anomaly,
		SessionDelta:  input.SessionDelta,
		Checkpoint:    input.Checkpoint,
		Verify:        input.Verify,
	}

	chained, _ := l.chain.Append(ev)
	l.store.AddEvent(chained)

	if l.exporter != nil {
		l.exporter.enqueue(chained)
	}

	return chained, nil
}

func (l *Logger) checkSessionActive(sessionID string) error {
	sess, ok := l.store.GetSession(sessionID)
	if !ok {
		return kerrors.NotFound("session", sessionID)
	}
	status := sess.Status
	if status == kontextmodel.SessionActive && sess.ExpiresAt != nil && time.Now().After(*sess.ExpiresAt) {
		status = kontextmodel.SessionExpired
	}
	if status != kontextmodel.SessionActive {
		return kerrors.ConflictingState("session", sessionID, string(status), "log event")
	}
	return nil
}

func (l *Logger) validate(input Input) error {
	if input.AgentID == "" {
		return kerrors.Validation("agent_id", "must not be empty")
	}
	if input.Type == "" {
		return kerrors.Validation("type", "must not be empty")
	}

	payloadCount := 0
	for _, present := range []bool{
		input.Action != nil,
		input.Transaction != nil,
		input.Reasoning != nil,
		input.Anomaly != nil,
		input.SessionDelta != nil,
		input.Checkpoint != nil,
		input.Verify != nil,
	} {
		if present {
			payloadCount++
		}
	}
	if payloadCount != 1 {
		return kerrors.Validation("payload", fmt.Sprintf("exactly one payload variant must be set, got %d", payloadCount))
	}

	if err := l.validateTypeMatchesPayload(input); err != nil {
		return err
	}

	return nil
}

func (l *Logger) validateTypeMatchesPayload(input Input) error {
	mismatch := kerrors.Validation("type", "does not match the populated payload variant")
	switch input.Type {
	case kontextmodel.EventAction:
		if input.Action == nil {
			return mismatch
		}
	case kontextmodel.EventTransaction:
		if input.Transaction == nil {
			return mismatch
		}
	case kontextmodel.EventReasoning:
		if input.Reasoning == nil {
			return mismatch
		}
	case kontextmodel.EventAnomaly:
		if input.Anomaly == nil {
			return mismatch
		}
	case kontextmodel.EventSessionStart, kontextmodel.EventSessionEnd:
		if input.SessionDelta == nil {
			return mismatch
		}
	case kontextmodel.EventCheckpointCreated, kontextmodel.EventCheckpointAttested, kontextmodel.EventCheckpointRejected:
		if input.Checkpoint == nil {
			return mismatch
		}
	case kontextmodel.EventVerifyResult:
		if input.Verify == nil {
			return mismatch
		}
	default:
		return kerrors.Validation("type", fmt.Sprintf("unknown event type %q", input.Type))
	}
	return nil
}

// Chain exposes the underlying chain for callers that need Terminal/Export
// (e.g. the Audit Export component).
func (l *Logger) Chain() *chain.Chain { return l.chain }

// Store exposes the underlying store for query operations.
func (l *Logger) Store() *eventstore.Store { return l.store }
