package fileadapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontext-systems/audit-core/pkg/storageadapter"
	"github.com/kontext-systems/audit-core/pkg/storageadapter/fileadapter"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	adapter, err := fileadapter.New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, adapter.Save(ctx, "kontext:events", []byte(`[1,2,3]`)))

	data, err := adapter.Load(ctx, "kontext:events")
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3]`, string(data))
}

func TestLoadMissingKeyReturnsErrNotFound(t *testing.T) {
	adapter, err := fileadapter.New(t.TempDir())
	require.NoError(t, err)

	_, err = adapter.Load(context.Background(), "kontext:sessions")
	assert.True(t, errors.Is(err, storageadapter.ErrNotFound))
}
