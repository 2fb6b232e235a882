package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/transport/http/response"
)

const DefaultHeartbeat = 30 * time.Second

type sseWriter struct {
	c       *gin.Context
	flusher http.Flusher
}

func startSSE(c *gin.Context) (*sseWriter, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return nil, false
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()
	return &sseWriter{c: c, flusher: flusher}, true
}

// event writes one SSE event. data is sent as is when it is already JSON
// bytes, otherwise it is marshalled.
func (w *sseWriter) event(name string, data interface{}) error {
	raw, ok := data.([]byte)
	if !ok {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return fmt.Errorf("marshal sse event failed: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w.c.Writer, "event: %s\ndata: %s\n\n", name, sanitizeSSE(string(raw))); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) heartbeat() error {
	return w.event("heartbeat", gin.H{"ts": time.Now().Unix()})
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
