package sanctions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kontext-systems/audit-core/pkg/sanctions"
)

func TestEVMAddressLookupIsCaseInsensitive(t *testing.T) {
	idx := sanctions.New()
	idx.Reload([]sanctions.Entry{
		{Address: "0xAbCdEf0123456789AbCdEf0123456789aBcDeF01", Chain: "ethereum", Reason: sanctions.Reason{EntityName: "bad actor"}},
	})

	assert.True(t, idx.IsSanctioned("0xabcdef0123456789abcdef0123456789abcdef01", "ethereum"))
	assert.True(t, idx.IsSanctioned("0xABCDEF0123456789ABCDEF0123456789ABCDEF01", "polygon"))
}

func TestNonEVMAddressPreservesCaseAndChainScope(t *testing.T) {
	idx := sanctions.New()
	idx.Reload([]sanctions.Entry{
		{Address: "bc1qSanctionedAddress", Chain: "bitcoin", Reason: sanctions.Reason{EntityName: "bad actor"}},
	})

	assert.True(t, idx.IsSanctioned("bc1qSanctionedAddress", "bitcoin"))
	assert.False(t, idx.IsSanctioned("bc1qsanctionedaddress", "bitcoin"))
	assert.False(t, idx.IsSanctioned("bc1qSanctionedAddress", "litecoin"))
}

func TestEVMAddressPropagatesAcrossChains(t *testing.T) {
	idx := sanctions.New()
	idx.Reload([]sanctions.Entry{
		{Address: "0x1111111111111111111111111111111111111111", Chain: "ethereum", Reason: sanctions.Reason{EntityName: "mixer"}},
	})

	assert.True(t, idx.IsSanctioned("0x1111111111111111111111111111111111111111", "arbitrum"))
	assert.True(t, idx.IsSanctioned("0x1111111111111111111111111111111111111111", "base"))
}

func TestReloadReplacesEntirelyAndAtomically(t *testing.T) {
	idx := sanctions.New()
	idx.Reload([]sanctions.Entry{
		{Address: "0x2222222222222222222222222222222222222222", Chain: "ethereum", Reason: sanctions.Reason{EntityName: "first"}},
	})
	assert.True(t, idx.IsSanctioned("0x2222222222222222222222222222222222222222", "ethereum"))

	idx.Reload([]sanctions.Entry{
		{Address: "0x3333333333333333333333333333333333333333", Chain: "ethereum", Reason: sanctions.Reason{EntityName: "second"}},
	})
	assert.False(t, idx.IsSanctioned("0x2222222222222222222222222222222222222222", "ethereum"))
	assert.True(t, idx.IsSanctioned("0x3333333333333333333333333333333333333333", "ethereum"))
}

func TestReasonReturnsSanctionMetadata(t *testing.T) {
	idx := sanctions.New()
	idx.Reload([]sanctions.Entry{
		{
			Address: "0x4444444444444444444444444444444444444444",
			Chain:   "ethereum",
			Reason:  sanctions.Reason{EntityName: "blocked entity", Lists: []string{"OFAC-SDN"}, SourceID: "SDN-1234"},
		},
	})

	r, ok := idx.Reason("0x4444444444444444444444444444444444444444", "ethereum")
	assert.True(t, ok)
	assert.Equal(t, "blocked entity", r.EntityName)
	assert.Equal(t, []string{"OFAC-SDN"}, r.Lists)
	assert.Equal(t, "SDN-1234", r.SourceID)

	_, ok = idx.Reason("0x5555555555555555555555555555555555555555", "ethereum")
	assert.False(t, ok)
}

func TestEmptyIndexReportsNothingSanctioned(t *testing.T) {
	idx := sanctions.New()
	assert.False(t, idx.IsSanctioned("0x1111111111111111111111111111111111111111", "ethereum"))
}
