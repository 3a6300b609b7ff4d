package kontextkernel_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/anomaly"
	"github.com/kontext-systems/audit-core/pkg/approval"
	"github.com/kontext-systems/audit-core/pkg/auditexport"
	"github.com/kontext-systems/audit-core/pkg/compliance"
	"github.com/kontext-systems/audit-core/pkg/kontextkernel"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
	"github.com/kontext-systems/audit-core/pkg/provenance"
	"github.com/kontext-systems/audit-core/pkg/storageadapter"
	"github.com/kontext-systems/audit-core/pkg/storageadapter/fileadapter"
)

func newKernel(t *testing.T) *kontextkernel.Kernel {
	t.Helper()
	return newKernelWithAdapter(t, nil)
}

func newKernelWithAdapter(t *testing.T, adapter storageadapter.Adapter) *kontextkernel.Kernel {
	t.Helper()
	k, err := kontextkernel.New(time.Time{}, kontextkernel.Config{
		StorageAdapter: adapter,
		Compliance:     compliance.Config{AmountThreshold: decimal.NewFromInt(1000)},
		Anomaly:        anomaly.Config{MaxAmount: decimal.NewFromInt(5000)},
		Policies: map[approval.PolicyName]*approval.Policy{
			approval.PolicyManual: {Enabled: true},
		},
	})
	require.NoError(t, err)
	return k
}

func TestKernelCreatesSessionThroughProvenance(t *testing.T) {
	k := newKernel(t)

	sess, err := k.Provenance.CreateSession(provenance.CreateSessionInput{
		AgentID:     "agent-1",
		DelegatedBy: "owner-1",
		Scope:       []string{"transfer"},
	})
	require.NoError(t, err)
	assert.Equal(t, kontextmodel.SessionActive, sess.Status)
}

func TestKernelVerifyEmitsChainedVerdictThenTransaction(t *testing.T) {
	k := newKernel(t)

	verdict, err := k.Verify(compliance.Input{
		Hash: "0xabc", Chain: "base", Amount: "500", Token: "USDC",
		From: "0xaaa", To: "0xbbb", AgentID: "agent-1",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Compliant)

	events := k.Store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, kontextmodel.EventVerifyResult, events[0].Type)
	assert.Equal(t, kontextmodel.EventTransaction, events[1].Type)
}

func TestKernelCheckRunsAnomalyThenApproval(t *testing.T) {
	k := newKernel(t)

	anomalies, req, err := k.Check(
		anomaly.TransactionInput{AgentID: "agent-1", Chain: "base", Amount: "9000", From: "0xaaa", To: "0xbbb"},
		approval.Input{AgentID: "agent-1", Amount: decimal.NewFromInt(9000)},
	)
	require.NoError(t, err)
	assert.NotEmpty(t, anomalies)
	require.NotNil(t, req)
	assert.Contains(t, req.TriggeredBy, approval.PolicyManual)
}

func TestKernelReasonLooksUpSanctions(t *testing.T) {
	k := newKernel(t)
	_, found := k.Reason("0xdeadbeef", "base")
	assert.False(t, found)
}

func TestKernelCertifyProducesContentHash(t *testing.T) {
	k := newKernel(t)
	_, err := k.Verify(compliance.Input{
		Hash: "0xabc", Chain: "base", Amount: "500", Token: "USDC",
		From: "0xaaa", To: "0xbbb", AgentID: "agent-1",
	})
	require.NoError(t, err)

	cert, err := k.Certify("agent-1", "2026-07-29T00:00:00Z")
	require.NoError(t, err)
	assert.NotEmpty(t, cert.ContentHash)
	assert.NotEqual(t, auditexport.StatusNonCompliant, cert.Status)
}

func TestKernelSyncRestoreRebuildsChain(t *testing.T) {
	dir := t.TempDir()
	adapter, err := fileadapter.New(dir)
	require.NoError(t, err)

	k := newKernelWithAdapter(t, adapter)
	_, err = k.Verify(compliance.Input{
		Hash: "0xabc", Chain: "base", Amount: "500", Token: "USDC",
		From: "0xaaa", To: "0xbbb", AgentID: "agent-1",
	})
	require.NoError(t, err)
	require.NoError(t, k.Sync(context.Background(), false))

	restored := newKernelWithAdapter(t, adapter)
	require.NoError(t, restored.Sync(context.Background(), true))

	events := restored.Store.Events()
	require.Len(t, events, 2)
	result := restored.Chain.Verify(events)
	assert.True(t, result.Valid)
}

func TestKernelExportProducesJSONBundle(t *testing.T) {
	k := newKernel(t)
	_, err := k.Verify(compliance.Input{
		Hash: "0xabc", Chain: "base", Amount: "500", Token: "USDC",
		From: "0xaaa", To: "0xbbb", AgentID: "agent-1",
	})
	require.NoError(t, err)

	result, err := k.Export(auditexport.FormatJSON, auditexport.Filters{}, "2026-07-29T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordCount)
}
