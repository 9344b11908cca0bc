package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
	"dm-service/internal/service"
)

type chatTestDeps struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	counters *mocks.UnreadCounterStoreMock
}

func setupChatRouter(t *testing.T) (*gin.Engine, chatTestDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := chatTestDeps{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		counters: new(mocks.UnreadCounterStoreMock),
	}
	svc := service.NewMessageService(deps.chats, deps.messages, deps.counters, nil, nil)
	handler := NewChatHandler(deps.chats, svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats", handler.StartChat)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.DELETE("/chats/:chat_id", handler.DeleteChat)
	return r, deps
}

func TestListChatsSuccess(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("ListChats", mock.Anything, 1).Return([]models.ChatSummary{{ChatID: 3, FriendID: 2, Unread: 4}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.ChatSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["chats"], 1)
	assert.Equal(t, 4, resp["chats"][0].Unread)

	deps.chats.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("ListChats", mock.Anything, 1).Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	deps.chats.AssertExpectations(t)
}

func TestStartChatSuccess(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("CreateOrGetChat", mock.Anything, 1, 2).Return(models.Chat{ID: 10}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"friend_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.chats.AssertExpectations(t)
}

func TestStartChatWithSelf(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("CreateOrGetChat", mock.Anything, 1, 1).Return(models.Chat{}, repositories.ErrSelfChat).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"friend_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	deps.messages.On("GetChatMessages", mock.Anything, 5).Return([]models.Message{{ID: 1, ChatID: 5, SenderID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.chats.AssertExpectations(t)
	deps.messages.AssertExpectations(t)
}

func TestGetChatMessagesForbidden(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ID: 5, User1ID: 2, User2ID: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	router, _ := setupChatRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteChatSoftThenRemoved(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	deps.chats.On("SoftDeleteChat", mock.Anything, 5, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["removed"])

	deps.chats.AssertExpectations(t)
}

func TestDeleteChatNotFound(t *testing.T) {
	router, deps := setupChatRouter(t)

	deps.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
