// Package kontextkernel composes the Digest Chain, Event Store, Logger,
// Provenance Manager, Sanctions Index, Anomaly Engine, Approval Engine,
// and Compliance Verifier into a single façade, grounded on the
// teacher's pkg/bridge.KernelBridge composition layer (one constructor
// wiring the governance collaborators, one call per governed operation).
// Trust scoring and audit export are pure functions over the Event
// Store snapshot and are exposed here as thin pass-throughs rather than
// stateful collaborators.
package kontextkernel

import (
	"context"
	"time"

	"github.com/kontext-systems/audit-core/pkg/anomaly"
	"github.com/kontext-systems/audit-core/pkg/approval"
	"github.com/kontext-systems/audit-core/pkg/auditexport"
	"github.com/kontext-systems/audit-core/pkg/chain"
	"github.com/kontext-systems/audit-core/pkg/compliance"
	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/provenance"
	"github.com/kontext-systems/audit-core/pkg/sanctions"
	"github.com/kontext-systems/audit-core/pkg/storageadapter"
	"github.com/kontext-systems/audit-core/pkg/trustscore"
)

// Config wires the parameters each collaborator needs at construction.
type Config struct {
	StorageAdapter storageadapter.Adapter // nil disables flush/restore
	Compliance     compliance.Config
	Anomaly        anomaly.Config
	ApprovalTTL    time.Duration
	Policies       map[approval.PolicyName]*approval.Policy
}

// Kernel is the single composition point external callers (the CLI,
// an embedding service) talk to. Every governed operation below is a
// thin pass-through to its collaborators (Check and Certify each call
// two, the rest one), in the order the underlying spec's operations are
// defined.
type Kernel struct {
	Chain      *chain.Chain
	Store      *eventstore.Store
	Logger     *kontextlog.Logger
	Provenance *provenance.Manager
	Sanctions  *sanctions.Index
	Anomaly    *anomaly.Engine
	Approval   *approval.Engine
	Compliance *compliance.Verifier
}

// New constructs a Kernel. Events logged through Logger that fire an
// anomaly automatically cross-pollinate back into the Compliance
// Verifier's recent-anomaly-context check via the shared Store — the
// Anomaly Engine and Compliance Verifier both read the same Store, no
// explicit callback wiring is required for that path. The Anomaly
// Engine's Subscribe hook is exposed via Kernel.Anomaly for callers
// that want their own notification (e.g. paging a reviewer).
func New(base time.Time, cfg Config) (*Kernel, error) {
	c := chain.New(base)
	s := eventstore.New(cfg.StorageAdapter)
	l := kontextlog.New(c, s, nil)
	prov := provenance.New(l, s)
	idx := sanctions.New()
	anomalyEngine := anomaly.New(cfg.Anomaly, l)

	approvalEngine, err := approval.NewEngine(cfg.Policies, cfg.ApprovalTTL)
	if err != nil {
		return nil, err
	}

	verifier := compliance.New(cfg.Compliance, idx, prov, s, l)

	return &Kernel{
		Chain:      c,
		Store:      s,
		Logger:     l,
		Provenance: prov,
		Sanctions:  idx,
		Anomaly:    anomalyEngine,
		Approval:   approvalEngine,
		Compliance: verifier,
	}, nil
}

// Verify runs the Compliance Verifier against a proposed transaction.
// This mirrors the CLI's "verify" subcommand.
func (k *Kernel) Verify(input compliance.Input) (compliance.Verdict, error) {
	return k.Compliance.Verify(input)
}

// Check evaluates the Anomaly Engine then the Approval Engine against a
// proposed transaction, returning any fired anomaly events and, if a
// policy triggered, the resulting approval request. This mirrors the
// CLI's "check" subcommand.
func (k *Kernel) Check(txInput anomaly.TransactionInput, approvalInput approval.Input) ([]kontextmodel.Event, *approval.Request, error) {
	anomalies, err := k.Anomaly.Evaluate(txInput)
	if err != nil {
		return nil, nil, err
	}
	req, err := k.Approval.Evaluate(approvalInput)
	if err != nil {
		return anomalies, nil, err
	}
	return anomalies, req, nil
}

// Reason looks up sanctions metadata for an address. This mirrors the
// CLI's "reason" subcommand.
func (k *Kernel) Reason(address, chainName string) (sanctions.Reason, bool) {
	return k.Sanctions.Reason(address, chainName)
}

// Certify issues a compliance certificate for agentID, computing its
// trust score from the current Store snapshot first. This mirrors the
// CLI's "cert" subcommand.
func (k *Kernel) Certify(agentID, issuedAt string) (auditexport.Certificate, error) {
	score := trustscore.Compute(k.Store, agentID)
	return auditexport.Certify(k.Store, k.Chain, agentID, score.Overall, issuedAt)
}

// Export produces an audit export bundle in the requested format. This
// mirrors the CLI's "audit" subcommand.
func (k *Kernel) Export(format auditexport.Format, filters auditexport.Filters, exportedAt string) (auditexport.Result, error) {
	return auditexport.Export(k.Store, k.Chain, format, filters, exportedAt)
}

// Sync flushes the Event Store to its configured Storage Adapter (or
// restores from it, when restore is true). A restore also rebuilds the
// Chain's link list and terminal digest from the restored events, since
// the Store persists events, never the chain's own link state. A failed
// restore leaves the Store empty and the Chain back at Genesis. This
// mirrors the CLI's "sync" subcommand.
func (k *Kernel) Sync(ctx context.Context, restore bool) error {
	if restore {
		if err := k.Store.Restore(ctx); err != nil {
			k.Chain.RebuildFromEvents(nil)
			return err
		}
		k.Chain.RebuildFromEvents(k.Store.Events())
		return nil
	}
	return k.Store.Flush(ctx)
}
