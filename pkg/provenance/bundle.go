package provenance

import (
	"github.com/kontext-systems/audit-core/pkg/kerrors"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// BundleVerification summarizes the chain and attestation coverage of a
// provenance bundle.
type BundleVerification struct {
	DigestChainValid bool `json:"digest_chain_valid"`
	TotalActions     int  `json:"total_actions"`
	HumanAttested    int  `json:"human_attested"`
	Unattested       int  `json:"unattested"`
}

// Bundle is the exported view of a session's full provenance history.
type Bundle struct {
	Session      *kontextmodel.Session      `json:"session"`
	UserActions  []kontextmodel.Event       `json:"user_actions"`
	Checkpoints  []*kontextmodel.Checkpoint `json:"checkpoints"`
	Verification BundleVerification         `json:"verification"`
}

// ExportBundle returns the session, its user actions (events bearing the
// session_id that are not themselves provenance-internal), its
// checkpoints, and a verification summary: chain validity across the full
// store, and the unattested count computed as total user actions minus
// the union of attested checkpoints' action_ids.
func (m *Manager) ExportBundle(sessionID string) (Bundle, error) {
	sess, ok := m.store.GetSession(sessionID)
	if !ok {
		return Bundle{}, kerrors.NotFound("session", sessionID)
	}
	m.mu.Lock()
	m.applyLazyExpiry(sess)
	m.mu.Unlock()

	allEvents := m.store.BySession(sessionID)
	var userActions []kontextmodel.Event
	for _, ev := range allEvents {
		if !ev.Type.IsProvenanceInternal() {
			userActions = append(userActions, ev)
		}
	}

	checkpoints := make([]*kontextmodel.Checkpoint, 0)
	attestedActionIDs := make(map[string]bool)
	for _, cp := range m.store.Checkpoints() {
		if cp.SessionID != sessionID {
			continue
		}
		m.applyCheckpointLazyExpiry(cp)
		checkpoints = append(checkpoints, cp)
		if cp.Status == kontextmodel.CheckpointAttested {
			for _, id := range cp.ActionIDs {
				attestedActionIDs[id] = true
			}
		}
	}

	chainResult := m.logger.Chain().Verify(m.store.Events())

	return Bundle{
		Session:     sess,
		UserActions: userActions,
		Checkpoints: checkpoints,
		Verification: BundleVerification{
			DigestChainValid: chainResult.Valid,
			TotalActions:     len(userActions),
			HumanAttested:    len(attestedActionIDs),
			Unattested:       len(userActions) - len(attestedActionIDs),
		},
	}, nil
}
