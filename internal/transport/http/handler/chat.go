package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"documind/internal/app"
	"documind/internal/transport/http/response"
)

// SessionIDHeader carries the resolved session id out of band, so the
// body can stay a pure token stream.
const SessionIDHeader = "X-Session-Id"

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	SessionID uint   `json:"session_id"`
	Message   string `json:"message" binding:"required"`
	MaxTokens int    `json:"max_tokens"`
}

type chatFragment struct {
	Content string `json:"content"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream answers one chat turn as newline-delimited JSON, one fragment
// object per line. Works for guests and authenticated users alike; the
// session id (authenticated only) is announced in a response header
// before the first fragment.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	turn, err := h.chatService.PrepareTurn(c.Request.Context(), app.ChatInput{
		Identity:  identityFromContext(c),
		SessionID: req.SessionID,
		Question:  req.Message,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start chat failed")
		}
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	if turn.SessionID != 0 {
		c.Header(SessionIDHeader, strconv.FormatUint(uint64(turn.SessionID), 10))
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	_, streamErr := h.chatService.StreamTurn(c.Request.Context(), turn, func(fragment string) error {
		line, marshalErr := json.Marshal(chatFragment{Content: fragment})
		if marshalErr != nil {
			return marshalErr
		}
		if _, writeErr := c.Writer.Write(append(line, '\n')); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		// Headers are gone; the best we can do is cut the stream.
		c.Abort()
	}
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		}
		return
	}

	response.OK(c, sessions)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID64, err := strconv.ParseUint(c.Query("session_id"), 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session_id")
		return
	}

	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, uint(sessionID64), limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, history)
}

func identityFromContext(c *gin.Context) app.Identity {
	if userID, ok := getUserIDFromContext(c); ok && userID != 0 {
		return app.UserIdentity(userID)
	}
	return app.GuestIdentity()
}
