package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrank/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_InvalidPath(t *testing.T) {
	// Try to open a file path (not directory)
	tmpFile := t.TempDir() + "/file.txt"
	// Create a file at the path
	backend, err := OpenBackend(tmpFile, false)
	if err == nil {
		backend.Close()
	}
	// We expect this to either error or succeed (depending on mkdir behavior)
	// The key is that it should handle the case gracefully
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			// Transaction logic here
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		testErr := assert.AnError
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return testErr
		})
		assert.Equal(t, testErr, err)
	})
}

func TestUpdate_CommitsAndRollsBack(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	key := []byte("test:key")

	err = backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(key, []byte("v1"))
	})
	require.NoError(t, err)

	err = backend.Update(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(key, []byte("v2")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)

	assert.Equal(t, "v1", readString(t, backend, key))
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	key := []byte("test:counter")
	attempts := 0

	err = backend.Update(ctx, func(tx *badger.Txn) error {
		attempts++
		if _, err := tx.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if attempts == 1 {
			// A concurrent writer commits after our read.
			require.NoError(t, backend.db.Update(func(other *badger.Txn) error {
				return other.Set(key, []byte("theirs"))
			}))
		}
		return tx.Set(key, []byte("ours"))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "ours", readString(t, backend, key))
}

func TestUpdate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	key := []byte("test:contended")
	attempts := 0

	err = backend.Update(context.Background(), func(tx *badger.Txn) error {
		attempts++
		if _, err := tx.Get(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		require.NoError(t, backend.db.Update(func(other *badger.Txn) error {
			return other.Set(key, []byte("theirs"))
		}))
		return tx.Set(key, []byte("ours"))
	})
	assert.ErrorIs(t, err, storage.ErrTooManyConflicts)
	assert.Equal(t, maxConflictRetries, attempts)
}

func TestUpdate_CancelledContext(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = backend.Update(ctx, func(tx *badger.Txn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func readString(t *testing.T, backend *Backend, key []byte) string {
	t.Helper()
	var value string
	err := backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	require.NoError(t, err)
	return value
}
