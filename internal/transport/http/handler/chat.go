package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/app"
	"tenantrag/internal/metrics"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/http/response"
	"tenantrag/internal/transport/pubsub"
)

type ChatHandler struct {
	chatService *app.ChatService
	metrics     *metrics.Metrics
	log         *logger.Logger
	heartbeat   time.Duration
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService, m *metrics.Metrics, log *logger.Logger, heartbeat time.Duration) *ChatHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChatHandler{chatService: chatService, metrics: m, log: log, heartbeat: heartbeat}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	channel, err := h.chatService.Send(c.Request.Context(), p, req.Message)
	if err != nil {
		respondError(c, err, "send message failed")
		return
	}

	response.Accepted(c, gin.H{
		"status":  "queued",
		"channel": channel.String(),
	})
}

// Stream relays the caller's outbox as SSE message events until the turn's
// done marker or the client goes away.
func (h *ChatHandler) Stream(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := h.chatService.Stream(ctx, p)
	if err != nil {
		h.log.Error("subscribe outbox failed", "session_key", p.SessionKey, "error", err)
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "stream unavailable")
		return
	}
	defer sub.Close()

	sse, ok := startSSE(c)
	if !ok {
		return
	}
	defer h.metrics.StreamOpened(metrics.StreamChat)()

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
			var chunk pubsub.ChatChunk
			if err := msg.Decode(&chunk); err != nil {
				h.log.Warn("skip malformed outbox message", "error", err)
				continue
			}
			if err := sse.event("message", msg.Payload); err != nil {
				return
			}
			if chunk.Done {
				return
			}
		}
	}
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), p, limit)
	if err != nil {
		respondError(c, err, "get history failed")
		return
	}

	response.OK(c, gin.H{
		"session_key": p.SessionKey,
		"messages":    history,
	})
}
