// Package auditexport implements the Audit Export & Certificate (C9):
// JSON/CSV export of the event log plus a compliance certificate with
// an embedded content hash, grounded on the teacher's
// pkg/audit/export.go Exporter.GeneratePack (manifest + checksum) and
// pkg/store/audit_store.go's ExportBundle/VerifyBundle pair.
package auditexport

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/kontext-systems/audit-core/pkg/canonform"
	"github.com/kontext-systems/audit-core/pkg/chain"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Filters narrows which events are included in an export.
type Filters struct {
	AgentID   string
	SessionID string
	Type      kontextmodel.EventType // empty means all types
}

// Result is the exported bundle's bit-exact field set.
type Result struct {
	Format         Format                     `json:"format"`
	ExportedAt     string                     `json:"exported_at"`
	RecordCount    int                        `json:"record_count"`
	Data           any                        `json:"data"`
	TerminalDigest string                     `json:"terminal_digest"`
	Chain          *chain.Snapshot            `json:"chain,omitempty"`
	Sessions       []*kontextmodel.Session    `json:"sessions,omitempty"`
	Checkpoints    []*kontextmodel.Checkpoint `json:"checkpoints,omitempty"`
}

// Export filters the store's events by filters, and for JSON bundles
// the full chain snapshot (genesis, links, terminal digest) plus
// sessions and checkpoints so the result is independently verifiable
// per the exported-bundle contract; CSV flattens events to rows with
// type-specific columns and omits the chain/sessions/checkpoints.
func Export(store *eventstore.Store, c *chain.Chain, format Format, filters Filters, exportedAt string) (Result, error) {
	events := filterEvents(store.Events(), filters)
	snap := c.Export()

	result := Result{
		Format:         format,
		ExportedAt:     exportedAt,
		RecordCount:    len(events),
		TerminalDigest: snap.Terminal,
	}

	switch format {
	case FormatJSON:
		result.Data = events
		result.Chain = &snap
		result.Sessions = store.Sessions()
		result.Checkpoints = store.Checkpoints()
	case FormatCSV:
		csvData, err := toCSV(events)
		if err != nil {
			return Result{}, err
		}
		result.Data = csvData
	default:
		return Result{}, fmt.Errorf("auditexport: unsupported format %q", format)
	}

	return result, nil
}

func filterEvents(events []kontextmodel.Event, filters Filters) []kontextmodel.Event {
	out := make([]kontextmodel.Event, 0, len(events))
	for _, ev := range events {
		if filters.AgentID != "" && ev.AgentID != filters.AgentID {
			continue
		}
		if filters.SessionID != "" && ev.SessionID != filters.SessionID {
			continue
		}
		if filters.Type != "" && ev.Type != filters.Type {
			continue
		}
		out = append(out, ev)
	}
	return out
}

var csvColumns = []string{
	"id", "timestamp", "agent_id", "session_id", "type", "description",
	"chain", "token", "amount", "from", "to", "tx_hash",
	"digest", "prior_digest",
}

// toCSV flattens events to rows with the fixed column set above;
// type-specific fields (chain/token/amount/from/to/tx_hash) are only
// populated for transaction events and left blank otherwise.
func toCSV(events []kontextmodel.Event) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return "", err
	}

	for _, ev := range events {
		row := make([]string, len(csvColumns))
		row[0] = ev.ID
		row[1] = ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
		row[2] = ev.AgentID
		row[3] = ev.SessionID
		row[4] = string(ev.Type)
		row[5] = ev.Description
		if ev.Transaction != nil {
			row[6] = ev.Transaction.Chain
			row[7] = ev.Transaction.Token
			row[8] = ev.Transaction.Amount
			row[9] = ev.Transaction.From
			row[10] = ev.Transaction.To
			row[11] = ev.Transaction.TxHash
		}
		row[12] = ev.Digest
		row[13] = ev.PriorDigest
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Certificate is the compliance certificate issued for an agent.
type Certificate struct {
	AgentID          string  `json:"agent_id"`
	IssuedAt         string  `json:"issued_at"`
	EventCount       int     `json:"event_count"`
	TransactionCount int     `json:"transaction_count"`
	AnomalyCount     int     `json:"anomaly_count"`
	CheckpointCount  int     `json:"checkpoint_count"`
	TerminalDigest   string  `json:"terminal_digest"`
	ChainValid       bool    `json:"chain_valid"`
	TrustScore       float64 `json:"trust_score"`
	Status           string  `json:"status"`
	ContentHash      string  `json:"content_hash"`
}

const (
	StatusCompliant      = "compliant"
	StatusReviewRequired = "review-required"
	StatusNonCompliant   = "non-compliant"
)

// Certify computes per-agent summary counts, chain validity across the
// full store, trust score, and an overall status, then stamps a
// content hash over the canonical JSON of every field but the hash
// itself so the certificate file is independently tamper-detectable.
func Certify(store *eventstore.Store, c *chain.Chain, agentID string, trustScore float64, issuedAt string) (Certificate, error) {
	agentEvents := store.ByAgent(agentID)

	cert := Certificate{
		AgentID:    agentID,
		IssuedAt:   issuedAt,
		EventCount: len(agentEvents),
		TrustScore: trustScore,
	}

	nonCompliantVerifies := 0
	for _, ev := range agentEvents {
		switch ev.Type {
		case kontextmodel.EventTransaction:
			cert.TransactionCount++
		case kontextmodel.EventAnomaly:
			cert.AnomalyCount++
		case kontextmodel.EventVerifyResult:
			if ev.Verify != nil && !ev.Verify.Compliant {
				nonCompliantVerifies++
			}
		}
	}
	agentSessions := make(map[string]bool)
	for _, sess := range store.Sessions() {
		if sess.AgentID == agentID {
			agentSessions[sess.SessionID] = true
		}
	}
	for _, cp := range store.Checkpoints() {
		if agentSessions[cp.SessionID] {
			cert.CheckpointCount++
		}
	}

	verifyResult := c.Verify(store.Events())
	cert.ChainValid = verifyResult.Valid
	cert.TerminalDigest = c.Terminal()

	switch {
	case !cert.ChainValid || nonCompliantVerifies > 0:
		cert.Status = StatusNonCompliant
	case trustScore < 50:
		cert.Status = StatusReviewRequired
	default:
		cert.Status = StatusCompliant
	}

	hashable := cert
	hashable.ContentHash = ""
	hash, err := canonform.Hash(hashable)
	if err != nil {
		return Certificate{}, err
	}
	cert.ContentHash = hash

	return cert, nil
}
