package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/app"
	"tenantrag/internal/metrics"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/http/response"
	"tenantrag/internal/transport/pubsub"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
	metrics         *metrics.Metrics
	log             *logger.Logger
	heartbeat       time.Duration
}

func NewDocumentHandler(documentService *app.DocumentService, m *metrics.Metrics, log *logger.Logger, heartbeat time.Duration) *DocumentHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentHandler{documentService: documentService, metrics: m, log: log, heartbeat: heartbeat}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	maxBytes := h.documentService.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, app.ErrFileTooLarge, "")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if fileHeader.Size > maxBytes {
		respondError(c, app.ErrFileTooLarge, "")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "cannot read file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "cannot read file")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		TenantID: p.TenantID,
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		if !errors.Is(err, app.ErrNotPDF) && !errors.Is(err, app.ErrFileTooLarge) && !errors.Is(err, app.ErrPageQuotaExceeded) {
			h.log.Error("upload document failed", "tenant_id", p.TenantID, "error", err)
		}
		respondError(c, err, "upload document failed")
		return
	}

	response.Accepted(c, gin.H{
		"status":      "queued",
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"num_pages":   doc.NumPages,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), p.TenantID)
	if err != nil {
		respondError(c, err, "list documents failed")
		return
	}

	response.OK(c, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), p.TenantID, c.Param("id"))
	if err != nil {
		respondError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.documentService.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		if !errors.Is(err, app.ErrDocumentBusy) && !errors.Is(err, app.ErrDocumentNotFound) {
			h.log.Error("delete document failed", "document_id", id, "error", err)
		}
		respondError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

// Progress streams ingestion progress as SSE until the final event. A
// document that already finished gets one event describing its state.
func (h *DocumentHandler) Progress(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, doc, err := h.documentService.WatchProgress(ctx, p.TenantID, c.Param("id"))
	if err != nil {
		respondError(c, err, "watch progress failed")
		return
	}

	sse, ok := startSSE(c)
	if !ok {
		if sub != nil {
			_ = sub.Close()
		}
		return
	}
	if sub == nil {
		_ = sse.event("progress", app.FinalEvent(doc))
		return
	}
	defer sub.Close()
	defer h.metrics.StreamOpened(metrics.StreamProgress)()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sse.heartbeat(); err != nil {
				return
			}
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			var ev pubsub.ProgressEvent
			if err := msg.Decode(&ev); err != nil {
				h.log.Warn("skip malformed progress event", "error", err)
				continue
			}
			if err := sse.event("progress", msg.Payload); err != nil {
				return
			}
			if ev.Done {
				return
			}
		}
	}
}
