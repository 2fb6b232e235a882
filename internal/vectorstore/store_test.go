package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(tenant, doc string, index int, vec ...float32) Chunk {
	return Chunk{
		DocumentID: doc,
		TenantID:   tenant,
		Content:    tenant + " content",
		Source:     doc + ".pdf",
		Page:       index + 1,
		Index:      index,
		Embedding:  vec,
	}
}

func TestChunkIDIsDeterministic(t *testing.T) {
	assert.Equal(t, ChunkID("doc-1", 3), ChunkID("doc-1", 3))
	assert.NotEqual(t, ChunkID("doc-1", 3), ChunkID("doc-1", 4))
	assert.NotEqual(t, ChunkID("doc-1", 3), ChunkID("doc-2", 3))
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("acme", "a1", 0, 1, 0),
		chunk("acme", "a1", 1, 0.9, 0.1),
		chunk("globex", "g1", 0, 1, 0),
	}))

	hits, err := s.Search(ctx, "acme", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "acme", h.TenantID)
	}
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	none, err := s.Search(ctx, "initech", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreRequiresTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Search(ctx, "", []float32{1}, 3)
	assert.ErrorIs(t, err, ErrTenantRequired)
	assert.ErrorIs(t, s.DeleteByDocument(ctx, " ", "d"), ErrTenantRequired)
	_, err = s.CountByDocument(ctx, "", "d")
	assert.ErrorIs(t, err, ErrTenantRequired)

	err = s.Upsert(ctx, []Chunk{chunk("", "d", 0, 1)})
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func TestMemoryStoreReindexOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := []Chunk{chunk("acme", "d1", 0, 1), chunk("acme", "d1", 1, 1)}
	require.NoError(t, s.Upsert(ctx, first))
	require.NoError(t, s.Upsert(ctx, []Chunk{chunk("acme", "d1", 0, 1), chunk("acme", "d1", 1, 1)}))

	n, err := s.CountByDocument(ctx, "acme", "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStoreDeleteScopedToTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("acme", "shared-id", 0, 1),
		chunk("globex", "shared-id", 0, 1),
	}))

	require.NoError(t, s.DeleteByDocument(ctx, "acme", "shared-id"))

	n, err := s.CountByDocument(ctx, "acme", "shared-id")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountByDocument(ctx, "globex", "shared-id")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreTopK(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var chunks []Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunk("acme", "d1", i, 1, float32(i)))
	}
	require.NoError(t, s.Upsert(ctx, chunks))

	hits, err := s.Search(ctx, "acme", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultTopK)
	assert.Equal(t, 0, hits[0].Index)
}

func TestQdrantFiltersAlwaysCarryTenant(t *testing.T) {
	f := tenantFilter("acme")
	require.Len(t, f.Must, 1)
	assert.Equal(t, payloadTenantID, f.Must[0].GetField().GetKey())
	assert.Equal(t, "acme", f.Must[0].GetField().GetMatch().GetKeyword())

	d := documentFilter("acme", "d1")
	require.Len(t, d.Must, 2)
	assert.Equal(t, payloadTenantID, d.Must[0].GetField().GetKey())
	assert.Equal(t, payloadDocumentID, d.Must[1].GetField().GetKey())
}
