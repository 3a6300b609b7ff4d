package config_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/approval"
	"github.com/kontext-systems/audit-core/pkg/config"
)

func TestResolveConvertsDefaultProfile(t *testing.T) {
	dir := locateProfiles(t)
	p, err := config.LoadComplianceProfile(dir, "default")
	require.NoError(t, err)

	resolved, err := config.Resolve(p)
	require.NoError(t, err)

	assert.True(t, resolved.Anomaly.MaxAmount.Equal(decimal.NewFromInt(10000)))
	assert.True(t, resolved.Compliance.AmountThreshold.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 86400, int(resolved.Compliance.AnomalyWindow.Seconds()))

	policy, ok := resolved.Policies[approval.PolicyAmountThreshold]
	require.True(t, ok)
	assert.True(t, policy.Enabled)
	assert.True(t, policy.Threshold.Equal(decimal.NewFromInt(5000)))

	manual, ok := resolved.Policies[approval.PolicyManual]
	require.True(t, ok)
	assert.True(t, manual.Enabled)
}

func TestResolveRejectsMalformedAmount(t *testing.T) {
	bad := &config.ComplianceProfile{
		Anomaly: config.AnomalyProfile{MaxAmount: "not-a-number"},
	}
	_, err := config.Resolve(bad)
	assert.Error(t, err)
}
