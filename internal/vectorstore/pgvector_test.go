package vectorstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Runs against a real postgres with the vector extension available.
func TestPGVectorStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	s := NewPGVectorStore(db)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() {
		_ = s.DeleteByDocument(ctx, "acme", "pg-doc")
		_ = s.DeleteByDocument(ctx, "globex", "pg-doc")
	})

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("acme", "pg-doc", 0, 1, 0, 0),
		chunk("globex", "pg-doc", 0, 1, 0, 0),
	}))
	// Upserting the same ids again must not duplicate rows.
	require.NoError(t, s.Upsert(ctx, []Chunk{chunk("acme", "pg-doc", 0, 1, 0, 0)}))

	hits, err := s.Search(ctx, "acme", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, "acme", h.TenantID)
	}

	n, err := s.CountByDocument(ctx, "acme", "pg-doc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
