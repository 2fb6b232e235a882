package app

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tenantrag/internal/ai"
	"tenantrag/internal/model"
	"tenantrag/internal/platform/blob"
	"tenantrag/internal/repository"
	"tenantrag/internal/transport/pubsub"
	"tenantrag/internal/vectorstore"
)

type testEnv struct {
	tenants  *repository.TenantRepository
	docs     *repository.DocumentRepository
	sessions *repository.SessionRepository
	messages *repository.MessageRepository
	users    *repository.UserRepository
	broker   *pubsub.MemoryBroker
	store    *vectorstore.MemoryStore
	blobs    *blob.LocalStore
	blobDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Document{},
		&model.ChatSession{},
		&model.Message{},
	))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	blobDir := filepath.Join(dir, "blobs")
	blobs, err := blob.NewLocalStore(blobDir)
	require.NoError(t, err)

	broker := pubsub.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })

	return &testEnv{
		tenants:  repository.NewTenantRepository(db),
		docs:     repository.NewDocumentRepository(db),
		sessions: repository.NewSessionRepository(db),
		messages: repository.NewMessageRepository(db),
		users:    repository.NewUserRepository(db),
		broker:   broker,
		store:    vectorstore.NewMemoryStore(),
		blobs:    blobs,
		blobDir:  blobDir,
	}
}

func (e *testEnv) seedTenant(t *testing.T, id string, pageQuota int) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		ID:        id,
		Name:      strings.ToUpper(id[:1]) + id[1:] + " Inc",
		APIKey:    "key-" + id,
		PageQuota: pageQuota,
	}
	require.NoError(t, e.tenants.Create(context.Background(), tenant))
	return tenant
}

// seedChunk indexes text for a tenant as if a document had been ingested.
func (e *testEnv) seedChunk(t *testing.T, tenantID, docID, source, text string) {
	t.Helper()
	require.NoError(t, e.store.Upsert(context.Background(), []vectorstore.Chunk{{
		DocumentID: docID,
		TenantID:   tenantID,
		Content:    text,
		Source:     source,
		Page:       1,
		Embedding:  embedText(text),
	}}))
}

const embedDim = 32

// embedText is a bag-of-words embedding: texts sharing words are similar.
func embedText(text string) []float32 {
	v := make([]float32, embedDim)
	v[0] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!:;")))
		v[1+h.Sum32()%(embedDim-1)]++
	}
	return v
}

type wordEmbedder struct {
	mu        sync.Mutex
	calls     int
	failAfter int
}

var errEmbedderDown = errors.New("embedding service unavailable")

func (e *wordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func (e *wordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	calls := e.calls
	e.mu.Unlock()
	if e.failAfter > 0 && calls > e.failAfter {
		return nil, errEmbedderDown
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

// mockChatModel streams its configured answer word by word and then returns
// its configured error, if any.
type mockChatModel struct {
	mock.Mock
}

func (m *mockChatModel) StreamChat(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	args := m.Called(ctx, messages, onChunk)
	answer := args.String(0)
	for _, part := range strings.SplitAfter(answer, " ") {
		if part == "" {
			continue
		}
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	if err := args.Error(1); err != nil {
		return "", err
	}
	return answer, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []model.DocumentJob
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job model.DocumentJob) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job.JobID = "job-" + job.DocumentID
	q.jobs = append(q.jobs, job)
	return job.JobID, nil
}

func (q *recordingQueue) Jobs() []model.DocumentJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.DocumentJob(nil), q.jobs...)
}

type memoryHistoryCache struct {
	mu      sync.Mutex
	entries map[string][]model.Message
}

func newMemoryHistoryCache() *memoryHistoryCache {
	return &memoryHistoryCache{entries: make(map[string][]model.Message)}
}

func (c *memoryHistoryCache) GetHistory(ctx context.Context, key string) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[key]
	return append([]model.Message(nil), m...), ok, nil
}

func (c *memoryHistoryCache) SetHistory(ctx context.Context, key string, messages []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]model.Message(nil), messages...)
	return nil
}

func (c *memoryHistoryCache) DeleteHistory(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func receive(t *testing.T, sub pubsub.Subscription) pubsub.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return pubsub.Message{}
}

// collectTurn reads chunks until the terminal marker.
func collectTurn(t *testing.T, sub pubsub.Subscription) []pubsub.ChatChunk {
	t.Helper()
	var chunks []pubsub.ChatChunk
	for {
		var c pubsub.ChatChunk
		require.NoError(t, receive(t, sub).Decode(&c))
		chunks = append(chunks, c)
		if c.Done {
			return chunks
		}
	}
}

func collectProgress(t *testing.T, sub pubsub.Subscription) []pubsub.ProgressEvent {
	t.Helper()
	var events []pubsub.ProgressEvent
	for {
		var ev pubsub.ProgressEvent
		require.NoError(t, receive(t, sub).Decode(&ev))
		events = append(events, ev)
		if ev.Done {
			return events
		}
	}
}

func joinChunks(chunks []pubsub.ChatChunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Chunk)
	}
	return sb.String()
}
