package provenance

import (
	"time"

	"github.com/google/uuid"

	"github.com/kontext-systems/audit-core/pkg/kerrors"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// CreateCheckpoint requires the session to be active and every action_id
// to name an event whose session_id matches. actions_digest is computed
// over the sorted referenced event digests.
func (m *Manager) CreateCheckpoint(sessionID string, actionIDs []string, summary string, expiresIn *time.Duration) (*kontextmodel.Checkpoint, error) {
	m.mu.Lock()
	sess, err := m.requireActive(sessionID)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	digests := make([]string, 0, len(actionIDs))
	for _, actionID := range actionIDs {
		ev, ok := m.store.GetEvent(actionID)
		if !ok {
			return nil, kerrors.NotFound("action", actionID)
		}
		if ev.SessionID != sessionID {
			return nil, kerrors.Validation("action_ids", "event "+actionID+" does not belong to session "+sessionID)
		}
		digests = append(digests, ev.Digest)
	}
	actionsDigest := hashDigests(digests)

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpointID := uuid.NewString()
	now := m.clock()

	_, err = m.logger.Log(kontextlog.Input{
		AgentID:     sess.AgentID,
		SessionID:   sessionID,
		Type:        kontextmodel.EventCheckpointCreated,
		Description: "checkpoint created: " + summary,
		Checkpoint: &kontextmodel.CheckpointPayload{
			CheckpointID:  checkpointID,
			ActionIDs:     actionIDs,
			Summary:       summary,
			ActionsDigest: actionsDigest,
		},
	})
	if err != nil {
		return nil, err
	}

	cp := &kontextmodel.Checkpoint{
		CheckpointID:  checkpointID,
		SessionID:     sessionID,
		ActionIDs:     actionIDs,
		Summary:       summary,
		ActionsDigest: actionsDigest,
		Status:        kontextmodel.CheckpointPending,
		CreatedAt:     now,
	}
	if expiresIn != nil {
		expiresAt := now.Add(*expiresIn)
		cp.ExpiresAt = &expiresAt
	}

	m.store.PutCheckpoint(cp)
	return cp, nil
}

// AttachAttestation requires the checkpoint to be pending and not past
// its expiry, and the attestation's referenced checkpoint id to match.
// The signature is recorded verbatim; the core never verifies it
// cryptographically.
func (m *Manager) AttachAttestation(checkpointID string, referencedCheckpointID string, attestation kontextmodel.Attestation) (*kontextmodel.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.store.GetCheckpoint(checkpointID)
	if !ok {
		return nil, kerrors.NotFound("checkpoint", checkpointID)
	}
	if referencedCheckpointID != checkpointID {
		return nil, kerrors.Validation("checkpoint_id", "attestation references a different checkpoint")
	}

	m.applyCheckpointLazyExpiry(cp)
	if cp.Status != kontextmodel.CheckpointPending {
		return nil, kerrors.ConflictingState("checkpoint", checkpointID, string(cp.Status), "attach attestation")
	}

	var eventType kontextmodel.EventType
	var nextStatus kontextmodel.CheckpointStatus
	var decision string
	switch attestation.Decision {
	case kontextmodel.DecisionApproved:
		eventType = kontextmodel.EventCheckpointAttested
		nextStatus = kontextmodel.CheckpointAttested
		decision = string(kontextmodel.DecisionApproved)
	case kontextmodel.DecisionRejected:
		eventType = kontextmodel.EventCheckpointRejected
		nextStatus = kontextmodel.CheckpointRejected
		decision = string(kontextmodel.DecisionRejected)
	default:
		return nil, kerrors.Validation("decision", "must be approved or rejected")
	}

	sess, ok := m.store.GetSession(cp.SessionID)
	agentID := ""
	if ok {
		agentID = sess.AgentID
	}

	_, err := m.logger.Log(kontextlog.Input{
		AgentID:     agentID,
		SessionID:   cp.SessionID,
		Type:        eventType,
		Description: "checkpoint " + decision,
		Checkpoint: &kontextmodel.CheckpointPayload{
			CheckpointID:  checkpointID,
			ActionIDs:     cp.ActionIDs,
			Summary:       cp.Summary,
			ActionsDigest: cp.ActionsDigest,
			ReviewerID:    attestation.ReviewerID,
			Decision:      decision,
		},
	})
	if err != nil {
		return nil, err
	}

	cp.Status = nextStatus
	cp.Attestation = &attestation
	m.store.PutCheckpoint(cp)
	return cp, nil
}

func (m *Manager) applyCheckpointLazyExpiry(cp *kontextmodel.Checkpoint) {
	if cp.Status != kontextmodel.CheckpointPending {
		return
	}
	if cp.ExpiresAt != nil && m.clock().After(*cp.ExpiresAt) {
		cp.Status = kontextmodel.CheckpointExpired
		m.store.PutCheckpoint(cp)
	}
}
