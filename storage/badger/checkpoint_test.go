package badger

import (
	"context"
	"testing"

	"github.com/poiesic/hybridrank/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	_, checkpoints, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	loaded, err := checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	cp := &core.Checkpoint{ProcessorType: "reembed", LastDocumentID: "test2", Processed: 2}
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, cp))
	assert.False(t, cp.UpdatedAt.IsZero())

	loaded, err = checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "test2", loaded.LastDocumentID)
	assert.Equal(t, 2, loaded.Processed)

	require.NoError(t, checkpoints.DeleteCheckpoint(ctx, "reembed"))
	loaded, err = checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	assert.NoError(t, checkpoints.DeleteCheckpoint(ctx, "never-saved"))
}
