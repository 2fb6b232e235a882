package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadTenantID   = "tenant_id"
	payloadDocumentID = "document_id"
	payloadContent    = "content"
	payloadSource     = "source"
	payloadPage       = "page"
	payloadIndex      = "chunk_index"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// VectorSize is the embedding dimension the collection is created with.
	VectorSize uint64
}

// QdrantStore keeps every tenant in one collection and filters on a keyword
// index over the tenant_id payload field.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client failed: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection failed: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create qdrant collection %q failed: %w", s.cfg.Collection, err)
	}

	for _, field := range []string{payloadTenantID, payloadDocumentID} {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			return fmt.Errorf("create qdrant index on %s failed: %w", field, err)
		}
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadTenantID:   c.TenantID,
				payloadDocumentID: c.DocumentID,
				payloadContent:    c.Content,
				payloadSource:     c.Source,
				payloadPage:       int64(c.Page),
				payloadIndex:      int64(c.Index),
			}),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]Hit, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	limit := uint64(normalizeTopK(topK))

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         tenantFilter(tenantID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{Chunk: Chunk{ID: r.Id.GetUuid()}, Score: r.Score}
		if p := r.Payload; p != nil {
			hit.TenantID = p[payloadTenantID].GetStringValue()
			hit.DocumentID = p[payloadDocumentID].GetStringValue()
			hit.Content = p[payloadContent].GetStringValue()
			hit.Source = p[payloadSource].GetStringValue()
			hit.Page = int(p[payloadPage].GetIntegerValue())
			hit.Index = int(p[payloadIndex].GetIntegerValue())
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *QdrantStore) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(tenantID, documentID)),
	}); err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) CountByDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         documentFilter(tenantID, documentID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func tenantFilter(tenantID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadTenantID, tenantID)},
	}
}

func documentFilter(tenantID, documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadTenantID, tenantID),
			qdrant.NewMatch(payloadDocumentID, documentID),
		},
	}
}
