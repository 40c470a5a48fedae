package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/aihub/internal/middleware"
	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/provider"
)

// APIKeyServiceInterface はAPIキーハンドラーが必要とするサービスインターフェース。
type APIKeyServiceInterface interface {
	// Save はAPIキーを暗号化して保存する。既存キーは上書きされる。
	Save(ctx context.Context, userID, providerName, apiKey string) error
	// List はユーザーの登録済みAPIキーを復号して返す。
	List(ctx context.Context, userID string) (map[string]string, error)
	// Delete はAPIキーを削除する。存在しなくてもエラーにならない。
	Delete(ctx context.Context, userID, providerName string) error
	// Validate は登録済みキーをプロバイダーAPIに対して検証する。
	Validate(ctx context.Context, userID, providerName string) (*provider.ValidationResult, error)
}

// APIKeyHandler はAPIキー管理のHTTPハンドラー。
type APIKeyHandler struct {
	service APIKeyServiceInterface
}

// NewAPIKeyHandler はAPIKeyHandlerを生成する。
func NewAPIKeyHandler(service APIKeyServiceInterface) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

// saveKeyRequest はAPIキー保存リクエストのボディ。
type saveKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// List は登録済みAPIキーの一覧を返す。
// 復号済みのキーを返すため、レスポンスはHTTPS経由でのみ想定される。
// GET /api/keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	keys, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"apiKeys": keys})
}

// Save はAPIキーを保存する。
// POST /api/keys
func (h *APIKeyHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req saveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Save(r.Context(), userID, req.Provider, req.APIKey); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "APIキーを保存しました。"})
}

// Delete はAPIキーを削除する。
// DELETE /api/keys/{provider}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	providerName := chi.URLParam(r, "provider")

	if err := h.service.Delete(r.Context(), userID, providerName); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "APIキーを削除しました。"})
}

// Validate は登録済みAPIキーをプロバイダーAPIに対して検証する。
// 上流障害は{valid:false}として返し、HTTPエラーにはしない。
// GET /api/keys/{provider}/validate
func (h *APIKeyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	providerName := chi.URLParam(r, "provider")

	result, err := h.service.Validate(r.Context(), userID, providerName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
