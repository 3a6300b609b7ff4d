// Package provenance implements the Provenance Manager (C5): the
// three-layer delegation state machine (session, action binding,
// checkpoint attestation), grounded on the teacher's escalation.Manager
// (WithClock injection, lazy expiry checked on read, mutex-guarded map of
// live entities).
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kontext-systems/audit-core/pkg/addrnorm"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kerrors"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// CreateSessionInput is the request to start a delegated session.
type CreateSessionInput struct {
	AgentID     string
	DelegatedBy string
	Scope       []string
	Constraints *kontextmodel.SessionConstraint
	ExpiresIn   *time.Duration
}

// ConstraintCheck carries the optional fields validate_constraints
// compares against a session's constraints; absent fields are not checked.
type ConstraintCheck struct {
	Amount *string
	Chain  *string
	Token  *string
	To     *string
}

// Manager owns session and checkpoint lifecycle transitions. It does not
// own event bodies or sessions/checkpoints storage itself — those live in
// the Event Store — but it is the only component that mutates them.
type Manager struct {
	mu     sync.Mutex
	logger *kontextlog.Logger
	store  *eventstore.Store
	clock  func() time.Time
}

// New constructs a Manager over logger and its backing store.
func New(logger *kontextlog.Logger, store *eventstore.Store) *Manager {
	return &Manager{logger: logger, store: store, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// CreateSession validates the input, normalizes constraint addresses,
// emits a chained session-start event, and stores the new session in
// active status. The event's digest becomes the session's genesis_digest.
func (m *Manager) CreateSession(input CreateSessionInput) (*kontextmodel.Session, error) {
	if input.AgentID == "" {
		return nil, kerrors.Validation("agent_id", "must not be empty")
	}
	if input.DelegatedBy == "" {
		return nil, kerrors.Validation("delegated_by", "must not be empty")
	}
	if len(input.Scope) == 0 {
		return nil, kerrors.Validation("scope", "must not be empty")
	}

	constraints := normalizeConstraints(input.Constraints)

	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID := uuid.NewString()
	now := m.clock()

	ev, err := m.logger.Log(kontextlog.Input{
		AgentID:     input.AgentID,
		SessionID:   sessionID,
		Type:        kontextmodel.EventSessionStart,
		Description: "session start",
		SessionDelta: &kontextmodel.SessionDeltaPayload{
			DelegatedBy: input.DelegatedBy,
			Scope:       input.Scope,
			Constraints: constraints,
		},
	})
	if err != nil {
		return nil, err
	}

	sess := &kontextmodel.Session{
		SessionID:     sessionID,
		AgentID:       input.AgentID,
		DelegatedBy:   input.DelegatedBy,
		Scope:         input.Scope,
		Constraints:   constraints,
		Status:        kontextmodel.SessionActive,
		CreatedAt:     now,
		GenesisDigest: ev.Digest,
	}
	if input.ExpiresIn != nil {
		expiresAt := now.Add(*input.ExpiresIn)
		sess.ExpiresAt = &expiresAt
	}

	m.store.PutSession(sess)
	return sess, nil
}

// EndSession transitions an active session to ended and emits a chained
// session-end event. Ending a session not currently active fails.
func (m *Manager) EndSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.requireActive(sessionID)
	if err != nil {
		return err
	}

	_, err = m.logger.Log(kontextlog.Input{
		AgentID:      sess.AgentID,
		SessionID:    sessionID,
		Type:         kontextmodel.EventSessionEnd,
		Description:  "session end",
		SessionDelta: &kontextmodel.SessionDeltaPayload{},
	})
	if err != nil {
		return err
	}

	now := m.clock()
	sess.Status = kontextmodel.SessionEnded
	sess.EndedAt = &now
	m.store.PutSession(sess)
	return nil
}

// ValidateScope reports whether capability is present in the session's
// scope. A session not in active state (including lazily-expired ones)
// always fails the check.
func (m *Manager) ValidateScope(sessionID, capability string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.requireActive(sessionID)
	if err != nil {
		return false
	}
	return sess.HasCapability(capability)
}

// ValidateConstraints compares every provided field of check against the
// session's constraints; all provided fields must satisfy.
func (m *Manager) ValidateConstraints(sessionID string, check ConstraintCheck) bool {
	m.mu.Lock()
	sess, err := m.requireActive(sessionID)
	m.mu.Unlock()
	if err != nil {
		return false
	}
	if sess.Constraints == nil {
		return true
	}
	c := sess.Constraints

	if check.Chain != nil && len(c.AllowedChains) > 0 && !contains(c.AllowedChains, *check.Chain) {
		return false
	}
	if check.Token != nil && len(c.AllowedTokens) > 0 && !contains(c.AllowedTokens, *check.Token) {
		return false
	}
	if check.To != nil && len(c.AllowedRecipients) > 0 {
		normalized := addrnorm.Normalize(*check.To)
		if !containsNormalized(c.AllowedRecipients, normalized) {
			return false
		}
	}
	if check.Amount != nil && c.MaxAmount != "" {
		ok, err := amountWithinMax(*check.Amount, c.MaxAmount)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// requireActive returns the session if it exists and is active, applying
// lazy expiry on read, or a kerrors.Error describing why it is not usable.
func (m *Manager) requireActive(sessionID string) (*kontextmodel.Session, error) {
	sess, ok := m.store.GetSession(sessionID)
	if !ok {
		return nil, kerrors.NotFound("session", sessionID)
	}
	m.applyLazyExpiry(sess)
	if sess.Status != kontextmodel.SessionActive {
		return nil, kerrors.ConflictingState("session", sessionID, string(sess.Status), "use")
	}
	return sess, nil
}

func (m *Manager) applyLazyExpiry(sess *kontextmodel.Session) {
	if sess.Status != kontextmodel.SessionActive {
		return
	}
	if sess.ExpiresAt != nil && m.clock().After(*sess.ExpiresAt) {
		sess.Status = kontextmodel.SessionExpired
		m.store.PutSession(sess)
	}
}

func normalizeConstraints(c *kontextmodel.SessionConstraint) *kontextmodel.SessionConstraint {
	if c == nil {
		return nil
	}
	out := *c
	if len(c.AllowedRecipients) > 0 {
		out.AllowedRecipients = make([]string, len(c.AllowedRecipients))
		for i, addr := range c.AllowedRecipients {
			out.AllowedRecipients[i] = addrnorm.Normalize(addr)
		}
	}
	return &out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsNormalized(values []string, normalizedTarget string) bool {
	for _, v := range values {
		if addrnorm.Normalize(v) == normalizedTarget {
			return true
		}
	}
	return false
}

// sortedDigestConcat joins sorted digests for actions_digest computation.
func sortedDigestConcat(digests []string) string {
	sorted := append([]string(nil), digests...)
	sort.Strings(sorted)
	return strings.Join(sorted, "")
}

func hashDigests(digests []string) string {
	h := sha256.Sum256([]byte(sortedDigestConcat(digests)))
	return hex.EncodeToString(h[:])
}
