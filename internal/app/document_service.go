package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantrag/internal/model"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/pkg/pdfextract"
	"tenantrag/internal/platform/blob"
	"tenantrag/internal/transport/pubsub"
	"tenantrag/internal/vectorstore"
)

const DefaultMaxUploadBytes int64 = 10 << 20

var pdfMagic = []byte("%PDF-")

type DocumentServiceConfig struct {
	MaxUploadBytes   int64
	DefaultPageQuota int
}

type UploadInput struct {
	TenantID string
	Filename string
	Data     []byte
}

// DocumentService is the tenant-facing side of the document registry:
// uploads, listings, deletes and progress subscriptions.
type DocumentService struct {
	log        *logger.Logger
	tenants    TenantStore
	docs       DocumentRegistry
	blobs      blob.Store
	jobs       JobQueue
	store      vectorstore.Store
	subscriber Subscriber
	countPages func([]byte) (int, error)
	cfg        DocumentServiceConfig
}

func NewDocumentService(
	log *logger.Logger,
	tenants TenantStore,
	docs DocumentRegistry,
	blobs blob.Store,
	jobs JobQueue,
	store vectorstore.Store,
	subscriber Subscriber,
	cfg DocumentServiceConfig,
) *DocumentService {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &DocumentService{
		log:        log,
		tenants:    tenants,
		docs:       docs,
		blobs:      blobs,
		jobs:       jobs,
		store:      store,
		subscriber: subscriber,
		countPages: pdfextract.CountPages,
		cfg:        cfg,
	}
}

func (s *DocumentService) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// Upload registers a PDF and queues it for indexing. The page quota is
// checked and the row inserted in one transaction before anything is written
// to blob storage; a later step that fails removes what was created.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if strings.TrimSpace(in.TenantID) == "" || len(in.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	filename := cleanFilename(in.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") || !bytes.HasPrefix(in.Data, pdfMagic) {
		return nil, ErrNotPDF
	}
	pages, err := s.countPages(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if pages <= 0 {
		return nil, ErrNotPDF
	}

	tenant, err := s.tenants.GetByID(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	id := uuid.NewString()
	doc := &model.Document{
		ID:          id,
		TenantID:    tenant.ID,
		Filename:    filename,
		ContentType: "application/pdf",
		SizeBytes:   int64(len(in.Data)),
		NumPages:    pages,
		BlobPath:    blob.DocumentKey(tenant.ID, id),
	}
	if err := s.docs.CreateWithinQuota(ctx, doc, tenant.EffectivePageQuota(s.cfg.DefaultPageQuota)); err != nil {
		return nil, err
	}

	log := s.log.With("document_id", doc.ID, "tenant_id", doc.TenantID)
	if err := s.blobs.Put(ctx, doc.BlobPath, in.Data, doc.ContentType); err != nil {
		s.rollback(ctx, log, doc, false)
		return nil, fmt.Errorf("%w: %v", ErrBlobWrite, err)
	}
	jobID, err := s.jobs.Enqueue(ctx, model.DocumentJob{
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		BlobPath:   doc.BlobPath,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		s.rollback(ctx, log, doc, true)
		return nil, fmt.Errorf("%w: %v", ErrEnqueue, err)
	}

	log.Info("document queued", "job_id", jobID, "pages", pages, "size_bytes", doc.SizeBytes)
	return doc, nil
}

func (s *DocumentService) rollback(ctx context.Context, log *logger.Logger, doc *model.Document, blobWritten bool) {
	ctx = context.WithoutCancel(ctx)
	if blobWritten {
		if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil && !errors.Is(err, blob.ErrNotFound) {
			log.Error("rollback blob failed", "error", err)
		}
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		log.Error("rollback document row failed", "error", err)
	}
}

func (s *DocumentService) List(ctx context.Context, tenantID string) ([]model.Document, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByTenant(ctx, tenantID)
}

func (s *DocumentService) Get(ctx context.Context, tenantID, id string) (*model.Document, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes a terminal document with its vectors and blob. Documents
// still queued or vectorizing are refused with ErrDocumentBusy. A delete
// interrupted midway leaves the document in the deleting state, from which
// it can be deleted again.
func (s *DocumentService) Delete(ctx context.Context, tenantID, id string) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	doc, err := s.docs.BeginDelete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	if err := s.store.DeleteByDocument(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete vectors failed: %w", err)
	}
	if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete blob failed: %w", err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("document deleted", "document_id", id, "tenant_id", tenantID)
	return nil
}

// WatchProgress subscribes to a document's progress. The subscription is
// opened before the status is read so no event between the two is lost. When
// the document is already terminal the subscription is closed and nil is
// returned with the document, and the caller reports the final state itself.
func (s *DocumentService) WatchProgress(ctx context.Context, tenantID, id string) (pubsub.Subscription, *model.Document, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, nil, err
	}
	sub, err := s.subscriber.Subscribe(ctx, pubsub.DocumentProgress(id))
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	if doc.Status.Terminal() {
		_ = sub.Close()
		return nil, doc, nil
	}
	return sub, doc, nil
}

// FinalEvent describes the state of a document that finished before its
// progress was watched.
func FinalEvent(doc *model.Document) pubsub.ProgressEvent {
	ev := pubsub.ProgressEvent{DocumentID: doc.ID, Done: true}
	switch doc.Status {
	case model.DocumentCompleted:
		ev.Step, ev.Progress, ev.Message = StepCompleted, 100, "Processing complete"
	case model.DocumentFailed:
		ev.Step, ev.Message, ev.Error = StepFailed, "Processing failed", doc.ErrorMessage
	default:
		ev.Step, ev.Message = string(doc.Status), "Document is being deleted"
	}
	return ev
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
