package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	key := DocumentKey("acme", "d1")

	require.NoError(t, s.Put(ctx, key, []byte("%PDF-1.4"), "application/pdf"))
	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, key))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "../escape.pdf", []byte("x"), ""))
	assert.Error(t, s.Put(context.Background(), "", []byte("x"), ""))
}

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "tenants/acme/documents/d1.pdf", DocumentKey("acme", "d1"))
}
