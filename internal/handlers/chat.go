package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/repositories"
	"dm-service/internal/service"
)

// ChatHandler manages chat endpoints.
type ChatHandler struct {
	chatRepo repositories.ChatRepository
	svc      *service.MessageService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, svc *service.MessageService) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, svc: svc}
}

// ListChats returns the chats visible to the authenticated user, each with
// its unread count and last message.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the existing chat between the caller and a
// friend.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		FriendID int `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfChat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID})
}

// GetChatMessages returns the chat history to a participant.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.svc.GetChatMessages(c.Request.Context(), userID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// DeleteChat soft-deletes the chat for the caller. When the other side has
// already deleted it, the chat and its messages are removed permanently.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	removed, err := h.svc.DeleteChat(c.Request.Context(), userID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete chat"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
