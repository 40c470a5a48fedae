package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/aihub/internal/chat"
	"github.com/hitoshi/aihub/internal/middleware"
	"github.com/hitoshi/aihub/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	List(ctx context.Context, userID, provider string) ([]*model.Chat, error)
	Get(ctx context.Context, userID, chatID string) (*model.Chat, error)
	Create(ctx context.Context, userID string, params chat.CreateParams) (*model.Chat, error)
	UpdateMessages(ctx context.Context, userID, chatID string, messages []model.Message) (*model.Chat, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) (*model.Chat, error)
	Delete(ctx context.Context, userID, chatID string) error
}

// ChatHandler はチャット履歴管理のHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// createChatRequest はチャット作成リクエストのボディ。
// IDはクライアント生成を許容する（オフライン作成との同期用）。
type createChatRequest struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Provider string          `json:"provider"`
	Messages []model.Message `json:"messages"`
}

// updateMessagesRequest はメッセージ更新リクエストのボディ。
type updateMessagesRequest struct {
	Messages []model.Message `json:"messages"`
}

// updateTitleRequest はタイトル更新リクエストのボディ。
type updateTitleRequest struct {
	Title string `json:"title"`
}

// chatSummaryResponse はチャット一覧用のレスポンス（メッセージ本体は含まない）。
type chatSummaryResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider"`
	LastMessage  string    `json:"lastMessage"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// chatResponse はチャット詳細用のレスポンス。
type chatResponse struct {
	chatSummaryResponse
	Messages []model.Message `json:"messages"`
}

func toChatSummaryResponse(c *model.Chat) chatSummaryResponse {
	return chatSummaryResponse{
		ID:           c.ID,
		Title:        c.Title,
		Provider:     c.Provider,
		LastMessage:  c.LastMessage,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toChatResponse(c *model.Chat) chatResponse {
	messages := c.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	return chatResponse{
		chatSummaryResponse: toChatSummaryResponse(c),
		Messages:            messages,
	}
}

// List はユーザーのチャット一覧を返す。
// GET /api/chats?provider=claude
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	chats, err := h.service.List(r.Context(), userID, r.URL.Query().Get("provider"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]chatSummaryResponse, len(chats))
	for i, c := range chats {
		results[i] = toChatSummaryResponse(c)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": results})
}

// Create はチャットを作成する。
// POST /api/chats
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	created, err := h.service.Create(r.Context(), userID, chat.CreateParams{
		ID:       req.ID,
		Title:    req.Title,
		Provider: req.Provider,
		Messages: req.Messages,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toChatResponse(created))
}

// Get はチャット詳細を取得する。
// GET /api/chats/{chatId}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	found, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "chatId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatResponse(found))
}

// UpdateMessages はチャットのメッセージ一覧を置き換える。
// PUT /api/chats/{chatId}/messages
func (h *ChatHandler) UpdateMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	updated, err := h.service.UpdateMessages(r.Context(), userID, chi.URLParam(r, "chatId"), req.Messages)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatResponse(updated))
}

// UpdateTitle はチャットのタイトルを変更する。
// PUT /api/chats/{chatId}/title
func (h *ChatHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	updated, err := h.service.UpdateTitle(r.Context(), userID, chi.URLParam(r, "chatId"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatSummaryResponse(updated))
}

// Delete はチャットを削除する。
// DELETE /api/chats/{chatId}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "chatId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
