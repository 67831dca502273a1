// Package handler provides the HTTP handlers for the document chat service.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/biz"
)

// chatTimeout bounds one chat turn including retrieval and generation.
const chatTimeout = 120 * time.Second

// defaultSessionID is used when the caller does not supply one.
const defaultSessionID = "default"

// DocChatHandler handles document chat HTTP requests.
type DocChatHandler struct {
	service biz.Service
}

// NewDocChatHandler creates a new DocChatHandler.
func NewDocChatHandler(service biz.Service) *DocChatHandler {
	return &DocChatHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFor maps business errors to HTTP status codes.
func statusFor(err error) int {
	var (
		validationErr  *biz.ValidationError
		unsupportedErr *biz.UnsupportedFileError
		parseErr       *biz.ParseError
		collabErr      *biz.CollaboratorError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &unsupportedErr):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &collabErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, ErrorResponse{Code: status, Message: err.Error()})
}

// Upload ingests one multipart file upload.
func (h *DocChatHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "missing file field: " + err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "failed to open upload: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "failed to read upload: " + err.Error()})
		return
	}

	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: result.Message, Data: result})
}

// ChatRequest represents a chat request.
type ChatRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// Chat answers a question over the uploaded documents.
func (h *DocChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	result, err := h.service.Chat(ctx, req.SessionID, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Chat timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// DocumentStats returns document collection counters. A store outage shows
// up in the payload, not as an error status.
func (h *DocChatHandler) DocumentStats(c *gin.Context) {
	stats := h.service.Stats(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// ClearAllDocuments empties the document collection.
func (h *DocChatHandler) ClearAllDocuments(c *gin.Context) {
	if err := h.service.ClearAllDocuments(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "All documents cleared"})
}

// History returns a session's conversation history.
func (h *DocChatHandler) History(c *gin.Context) {
	sessionID := c.Param("id")
	turns, err := h.service.History(c.Request.Context(), sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: gin.H{
		"session_id": sessionID,
		"turns":      turns,
	}})
}

// ClearHistory wipes a session's conversation history.
func (h *DocChatHandler) ClearHistory(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.service.ClearHistory(c.Request.Context(), sessionID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Session history cleared"})
}

// Health reports dependency probes and service counters. A degraded service
// still answers 200 so load balancers can read the detail.
func (h *DocChatHandler) Health(c *gin.Context) {
	report := h.service.Health(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
