package app

import (
	"context"
	"fmt"
	"time"

	"tenantrag/internal/metrics"
	"tenantrag/internal/model"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/pkg/pdfextract"
	"tenantrag/internal/pkg/textsplit"
	"tenantrag/internal/platform/blob"
	"tenantrag/internal/transport/pubsub"
	"tenantrag/internal/vectorstore"
)

const DefaultEmbeddingBatchSize = 10

// Progress steps published on a document's progress channel.
const (
	StepDownloading = "downloading"
	StepDownloaded  = "downloaded"
	StepSplitting   = "splitting"
	StepSplit       = "split"
	StepEmbedding   = "embedding"
	StepFinalizing  = "finalizing"
	StepCompleted   = "completed"
	StepFailed      = "failed"
)

type IngestionConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// IngestionService turns a queued document into tenant-scoped vectors and
// reports progress while doing so.
type IngestionService struct {
	log       *logger.Logger
	docs      DocumentRegistry
	blobs     blob.Store
	embedder  DocumentEmbedder
	store     vectorstore.Store
	publisher Publisher
	splitter  *textsplit.Splitter
	extract   func([]byte) ([]pdfextract.Page, error)
	metrics   *metrics.Metrics
	batchSize int
}

func NewIngestionService(
	log *logger.Logger,
	docs DocumentRegistry,
	blobs blob.Store,
	embedder DocumentEmbedder,
	store vectorstore.Store,
	publisher Publisher,
	m *metrics.Metrics,
	cfg IngestionConfig,
) *IngestionService {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbeddingBatchSize
	}
	return &IngestionService{
		log:       log,
		docs:      docs,
		blobs:     blobs,
		embedder:  embedder,
		store:     store,
		publisher: publisher,
		splitter:  textsplit.New(cfg.ChunkSize, cfg.ChunkOverlap),
		extract:   pdfextract.ExtractPages,
		metrics:   m,
		batchSize: cfg.BatchSize,
	}
}

// Process indexes one document. A document that is unknown, already
// completed, or being deleted is skipped. Processing errors mark the
// document failed and return a nil error; only a failure to record the
// outcome is returned, so the job can be retried.
func (s *IngestionService) Process(ctx context.Context, documentID string) (model.DocumentStatus, error) {
	log := s.log.With("document_id", documentID)

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		log.Warn("document no longer registered, skipping job")
		return "", nil
	}
	claimed, err := s.docs.Claim(ctx, doc.ID)
	if err != nil {
		return "", err
	}
	if !claimed {
		log.Info("document not claimable, skipping job", "status", doc.Status)
		return doc.Status, nil
	}

	start := time.Now()
	p := &progressReporter{log: log, publisher: s.publisher, ch: pubsub.DocumentProgress(doc.ID), documentID: doc.ID}

	chunkCount, runErr := s.index(ctx, doc, p)
	if runErr != nil {
		rctx := context.WithoutCancel(ctx)
		if err := s.docs.MarkFailed(rctx, doc.ID, runErr.Error()); err != nil {
			return "", fmt.Errorf("record failure failed: %w", err)
		}
		p.fail(rctx, runErr.Error())
		s.metrics.ObserveIngestion(string(model.DocumentFailed), time.Since(start))
		log.Error("document ingestion failed", "error", runErr)
		return model.DocumentFailed, nil
	}

	p.emit(ctx, StepFinalizing, 95, "Finalizing...")
	if err := s.docs.MarkCompleted(ctx, doc.ID, chunkCount); err != nil {
		return "", fmt.Errorf("record completion failed: %w", err)
	}
	if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil {
		log.Warn("delete source blob failed", "blob_path", doc.BlobPath, "error", err)
	}
	p.done(ctx, StepCompleted, "Processing complete")
	s.metrics.ObserveIngestion(string(model.DocumentCompleted), time.Since(start))
	log.Info("document ingested", "chunks", chunkCount, "elapsed", time.Since(start).String())
	return model.DocumentCompleted, nil
}

func (s *IngestionService) index(ctx context.Context, doc *model.Document, p *progressReporter) (int, error) {
	p.emit(ctx, StepDownloading, 0, "Downloading file...")
	data, err := s.blobs.Get(ctx, doc.BlobPath)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	p.emit(ctx, StepDownloaded, 10, "File downloaded")

	p.emit(ctx, StepSplitting, 10, "Splitting document into chunks...")
	pages, err := s.extract(data)
	if err != nil {
		return 0, fmt.Errorf("read pdf failed: %w", err)
	}
	input := make([]textsplit.Chunk, 0, len(pages))
	for _, pg := range pages {
		input = append(input, textsplit.Chunk{Text: pg.Text, Page: pg.Number})
	}
	chunks := s.splitter.SplitPages(input)
	if len(chunks) == 0 {
		return 0, ErrNoExtractableText
	}
	p.emit(ctx, StepSplit, 20, fmt.Sprintf("%d chunk(s) created", len(chunks)))

	// Reprocessing rewrites the document's vectors instead of adding to them.
	if err := s.store.DeleteByDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return 0, fmt.Errorf("clear previous vectors failed: %w", err)
	}

	total := len(chunks)
	batches := (total + s.batchSize - 1) / s.batchSize
	for i := 0; i < batches; i++ {
		from := i * s.batchSize
		to := min(from+s.batchSize, total)

		texts := make([]string, 0, to-from)
		for _, c := range chunks[from:to] {
			texts = append(texts, c.Text)
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed batch %d failed: %w", i+1, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embed batch %d returned %d vectors for %d chunks", i+1, len(vectors), len(texts))
		}

		batch := make([]vectorstore.Chunk, 0, len(texts))
		for j, c := range chunks[from:to] {
			batch = append(batch, vectorstore.Chunk{
				DocumentID: doc.ID,
				TenantID:   doc.TenantID,
				Content:    c.Text,
				Source:     doc.Filename,
				Page:       c.Page,
				Index:      from + j,
				Embedding:  vectors[j],
			})
		}
		if err := s.store.Upsert(ctx, batch); err != nil {
			return 0, fmt.Errorf("store batch %d failed: %w", i+1, err)
		}

		p.emit(ctx, StepEmbedding, 20+(i+1)*75/batches, fmt.Sprintf("Indexed %d/%d chunks", to, total))
	}

	// The recorded chunk count must match what a search can actually reach.
	stored, err := s.store.CountByDocument(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("count stored vectors failed: %w", err)
	}
	if stored != total {
		return 0, fmt.Errorf("vector store holds %d of %d chunks", stored, total)
	}
	return total, nil
}

// progressReporter publishes best-effort progress. Percentages never go
// down, and a failure is reported at the last percentage reached.
type progressReporter struct {
	log        *logger.Logger
	publisher  Publisher
	ch         pubsub.Channel
	documentID string
	last       int
}

func (p *progressReporter) emit(ctx context.Context, step string, percent int, message string) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	p.publish(ctx, pubsub.ProgressEvent{DocumentID: p.documentID, Step: step, Progress: percent, Message: message})
}

func (p *progressReporter) done(ctx context.Context, step, message string) {
	p.last = 100
	p.publish(ctx, pubsub.ProgressEvent{DocumentID: p.documentID, Step: step, Progress: 100, Message: message, Done: true})
}

func (p *progressReporter) fail(ctx context.Context, reason string) {
	p.publish(ctx, pubsub.ProgressEvent{
		DocumentID: p.documentID,
		Step:       StepFailed,
		Progress:   p.last,
		Message:    "Processing failed",
		Done:       true,
		Error:      reason,
	})
}

func (p *progressReporter) publish(ctx context.Context, ev pubsub.ProgressEvent) {
	if err := p.publisher.Publish(ctx, p.ch, ev); err != nil {
		p.log.Warn("publish progress failed", "step", ev.Step, "error", err)
	}
}
