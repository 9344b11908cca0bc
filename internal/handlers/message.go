package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/models"
	"dm-service/internal/repositories"
	"dm-service/internal/service"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	svc *service.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// PostMessage stores a message, bumps the receiver's unread counter and
// attempts a live push to the receiver.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		ChatID     int    `json:"chat_id" binding:"required"`
		ReceiverID int    `json:"receiver_id" binding:"required"`
		Text       string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.svc.CreateMessage(c.Request.Context(), userID, req.ChatID, req.ReceiverID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message text is required"})
		case errors.Is(err, repositories.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// UpdateStatus advances the status of every message addressed to the
// caller, reconciling unread counters per chat.
func (h *MessageHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	updated, err := h.svc.UpdateMessageStatus(c.Request.Context(), userID, models.MessageStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status value"})
		case errors.Is(err, service.ErrNoMessages):
			c.JSON(http.StatusNotFound, gin.H{"error": "no messages found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update statuses"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// TotalUnread returns the caller's unread total across all their chats.
func (h *MessageHandler) TotalUnread(c *gin.Context) {
	userID := c.GetInt("userID")

	total, err := h.svc.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total_unread": total})
}

// DeleteMessages bulk-deletes messages the caller sent.
func (h *MessageHandler) DeleteMessages(c *gin.Context) {
	var req struct {
		MessageIDs []int `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	deleted, err := h.svc.DeleteMessages(c.Request.Context(), userID, req.MessageIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message ids are required"})
		case errors.Is(err, service.ErrNoMessages):
			c.JSON(http.StatusNotFound, gin.H{"error": "no messages found for the user to delete"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete messages"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
