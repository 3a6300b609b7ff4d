// Package kontextmodel holds the data types shared by the digest chain,
// event store, provenance manager, compliance verifier, anomaly and
// approval engines — the single dependency every other package in the
// module imports, the way the teacher's pkg/contracts anchors its
// kernel/executor/escalation packages.
package kontextmodel

import "time"

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventAction             EventType = "action"
	EventTransaction        EventType = "transaction"
	EventReasoning          EventType = "reasoning"
	EventAnomaly            EventType = "anomaly"
	EventSessionStart       EventType = "session-start"
	EventSessionEnd         EventType = "session-end"
	EventCheckpointCreated  EventType = "checkpoint-created"
	EventCheckpointAttested EventType = "checkpoint-attested"
	EventCheckpointRejected EventType = "checkpoint-rejected"
	EventVerifyResult       EventType = "verify-result"
)

// provenanceEventTypes holds the five event types that are internal to the
// provenance manager rather than user actions (spec §4.5 bundle export).
var provenanceEventTypes = map[EventType]bool{
	EventSessionStart:       true,
	EventSessionEnd:         true,
	EventCheckpointCreated:  true,
	EventCheckpointAttested: true,
	EventCheckpointRejected: true,
}

// IsProvenanceInternal reports whether t is one of the provenance-internal
// event types (session/checkpoint lifecycle), as opposed to a user action.
func (t EventType) IsProvenanceInternal() bool {
	return provenanceEventTypes[t]
}

// ActionPayload describes a generic agent action. Status, when set,
// tracks task outcome (e.g. "confirmed", "failed") for the trust
// scorer's task ratio factor; the core never assigns it automatically.
type ActionPayload struct {
	ActionType string         `json:"action_type"`
	Status     string         `json:"status,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TransactionPayload describes a proposed or executed on-chain transfer.
type TransactionPayload struct {
	TxHash   string         `json:"tx_hash,omitempty"`
	Chain    string         `json:"chain"`
	Token    string         `json:"token"`
	Amount   string         `json:"amount"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ReasoningPayload captures a single reasoning step leading to an action.
type ReasoningPayload struct {
	Step          int            `json:"step,omitempty"`
	ReasoningText string         `json:"reasoning_text"`
	Confidence    float64        `json:"confidence"`
	Context       map[string]any `json:"context,omitempty"`
}

// AnomalyPayload captures a triggered anomaly rule.
type AnomalyPayload struct {
	Rule     string         `json:"rule"`
	Severity string         `json:"severity"`
	Data     map[string]any `json:"data,omitempty"`
}

// SessionDeltaPayload is the start/end delegation delta for a session.
// End events carry none of the optional fields.
type SessionDeltaPayload struct {
	DelegatedBy string             `json:"delegated_by,omitempty"`
	Scope       []string           `json:"scope,omitempty"`
	Constraints *SessionConstraint `json:"constraints,omitempty"`
}

// CheckpointPayload describes a checkpoint creation/attestation/rejection.
type CheckpointPayload struct {
	CheckpointID  string   `json:"checkpoint_id"`
	ActionIDs     []string `json:"action_ids,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	ActionsDigest string   `json:"actions_digest,omitempty"`
	ReviewerID    string   `json:"reviewer,omitempty"`
	Decision      string   `json:"decision,omitempty"`
}

// VerifyPayload is the structured verdict emitted by the compliance verifier.
type VerifyPayload struct {
	Compliant bool          `json:"compliant"`
	RiskLevel string        `json:"risk_level"`
	Checks    []CheckResult `json:"checks"`
}

// CheckResult is a single named check performed by the compliance verifier.
type CheckResult struct {
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Event is the single chained unit. Exactly one of the Payload* fields is
// populated, selected by Type. Digest, PriorDigest and Salt are absent
// until the event has passed through the digest chain's Append.
type Event struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	PrecisionTimestamp uint64    `json:"precision_timestamp"`
	ProjectID          string    `json:"project_id,omitempty"`
	AgentID            string    `json:"agent_id"`
	SessionID          string    `json:"session_id,omitempty"`
	CorrelationID      string    `json:"correlation_id"`
	Type               EventType `json:"type"`
	Description        string    `json:"description,omitempty"`

	Action       *ActionPayload       `json:"action,omitempty"`
	Transaction  *TransactionPayload  `json:"transaction,omitempty"`
	Reasoning    *ReasoningPayload    `json:"reasoning,omitempty"`
	Anomaly      *AnomalyPayload      `json:"anomaly,omitempty"`
	SessionDelta *SessionDeltaPayload `json:"session_delta,omitempty"`
	Checkpoint   *CheckpointPayload   `json:"checkpoint,omitempty"`
	Verify       *VerifyPayload       `json:"verify,omitempty"`

	Digest      string `json:"digest,omitempty"`
	PriorDigest string `json:"prior_digest,omitempty"`
	Salt        string `json:"salt,omitempty"`
}

// WithoutChainFields returns a shallow copy of e with Digest, PriorDigest,
// and Salt cleared, for hashing per the deterministic serializer's rule 1.
func (e Event) WithoutChainFields() Event {
	e.Digest = ""
	e.PriorDigest = ""
	e.Salt = ""
	return e
}

// SessionConstraint bounds what a delegated session may authorize.
type SessionConstraint struct {
	MaxAmount         string   `json:"max_amount,omitempty"`
	AllowedChains     []string `json:"allowed_chains,omitempty"`
	AllowedTokens     []string `json:"allowed_tokens,omitempty"`
	AllowedRecipients []string `json:"allowed_recipients,omitempty"`
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
	SessionExpired SessionStatus = "expired"
)

// Session is Layer 1 of the provenance model: who authorized an agent to
// act, under what scope, and with what constraints.
type Session struct {
	SessionID     string             `json:"session_id"`
	AgentID       string             `json:"agent_id"`
	DelegatedBy   string             `json:"delegated_by"`
	Scope         []string           `json:"scope"`
	Constraints   *SessionConstraint `json:"constraints,omitempty"`
	Status        SessionStatus      `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	GenesisDigest string             `json:"genesis_digest"`
}

// HasCapability reports whether cap is present in the session's scope.
func (s *Session) HasCapability(cap string) bool {
	for _, c := range s.Scope {
		if c == cap {
			return true
		}
	}
	return false
}

// CheckpointStatus is the lifecycle state of a Checkpoint.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointAttested CheckpointStatus = "attested"
	CheckpointRejected CheckpointStatus = "rejected"
	CheckpointExpired  CheckpointStatus = "expired"
)

// AttestationDecision is the reviewer's verdict on a checkpoint.
type AttestationDecision string

const (
	DecisionApproved AttestationDecision = "approved"
	DecisionRejected AttestationDecision = "rejected"
)

// Attestation carries a human reviewer's sign-off on a checkpoint. The
// signature is opaque and produced outside the core.
type Attestation struct {
	ReviewerID string              `json:"reviewer_id"`
	Decision   AttestationDecision `json:"decision"`
	Signature  []byte              `json:"signature"`
	DecidedAt  time.Time           `json:"decided_at"`
}

// Checkpoint is Layer 3 of the provenance model: a batch of action ids
// plus a human attestation summarizing a review decision.
type Checkpoint struct {
	CheckpointID  string           `json:"checkpoint_id"`
	SessionID     string           `json:"session_id"`
	ActionIDs     []string         `json:"action_ids"`
	Summary       string           `json:"summary"`
	ActionsDigest string           `json:"actions_digest"`
	Status        CheckpointStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	Attestation   *Attestation     `json:"attestation,omitempty"`
}

// ApprovalStatus is the lifecycle state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalDecision records who decided an approval request and why.
type ApprovalDecision struct {
	DecidedBy string         `json:"decided_by,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Evidence  map[string]any `json:"evidence,omitempty"`
	DecidedAt time.Time      `json:"decided_at"`
}

// ApprovalRequest is a short-lived, non-chained human-in-the-loop gate.
type ApprovalRequest struct {
	ID                string            `json:"id"`
	ActionID          string            `json:"action_id"`
	AgentID           string            `json:"agent_id"`
	Status            ApprovalStatus    `json:"status"`
	TriggeredPolicies []string          `json:"triggered_policies"`
	RiskScore         int               `json:"risk_score"`
	RequiredEvidence  []string          `json:"required_evidence"`
	Decision          *ApprovalDecision `json:"decision,omitempty"`
	ExpiresAt         time.Time         `json:"expires_at"`
}
