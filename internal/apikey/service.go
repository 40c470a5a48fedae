// Package apikey はプロバイダーAPIキーの保存・取得・検証のドメインロジックを提供する。
// キーは保存時に暗号化され、平文がデータベースに書き込まれることはない。
package apikey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/provider"
	"github.com/hitoshi/aihub/internal/repository"
)

// Cipher はAPIキーの暗号化・復号インターフェース。
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// Service はAPIキー管理のサービス層。
type Service struct {
	keyRepo   repository.APIKeyRepository
	cipher    Cipher
	validator provider.ValidatorService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	keyRepo repository.APIKeyRepository,
	cipher Cipher,
	validator provider.ValidatorService,
) *Service {
	return &Service{
		keyRepo:   keyRepo,
		cipher:    cipher,
		validator: validator,
	}
}

// Save はAPIキーを暗号化して保存する。
// 同一ユーザー・同一プロバイダーの既存キーは上書きされる。
func (s *Service) Save(ctx context.Context, userID, providerName, apiKey string) error {
	if !model.IsValidProvider(providerName) {
		return model.NewInvalidProviderError(providerName)
	}
	if apiKey == "" {
		return model.NewValidationError("APIキーが指定されていません", "APIキーを入力してください")
	}

	encrypted, err := s.cipher.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}

	now := time.Now()
	key := &model.APIKey{
		ID:           uuid.New().String(),
		UserID:       userID,
		Provider:     providerName,
		EncryptedKey: encrypted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.keyRepo.Upsert(ctx, key); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}

	slog.Info("api key saved",
		slog.String("user_id", userID),
		slog.String("provider", providerName),
	)
	return nil
}

// List はユーザーの全APIキーを復号して返す。
// 戻り値はプロバイダー名をキーとする平文キーのマップで、
// クライアントがプロバイダーAPIを直接呼び出すために使用される。
func (s *Service) List(ctx context.Context, userID string) (map[string]string, error) {
	keys, err := s.keyRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	result := make(map[string]string, len(keys))
	for _, key := range keys {
		plaintext, err := s.cipher.Decrypt(key.EncryptedKey)
		if err != nil {
			// 復号に失敗したキーは致命的（暗号鍵の変更等）。部分的な成功は返さない。
			return nil, fmt.Errorf("failed to decrypt api key for provider %s: %w", key.Provider, err)
		}
		result[key.Provider] = plaintext
	}

	return result, nil
}

// Delete はAPIキーを削除する。存在しないキーの削除も成功として扱う（冪等）。
func (s *Service) Delete(ctx context.Context, userID, providerName string) error {
	if !model.IsValidProvider(providerName) {
		return model.NewInvalidProviderError(providerName)
	}

	if err := s.keyRepo.Delete(ctx, userID, providerName); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	slog.Info("api key deleted",
		slog.String("user_id", userID),
		slog.String("provider", providerName),
	)
	return nil
}

// Validate は保存済みAPIキーの疎通検証を行う。
// キー未登録や上流障害は検証失敗の結果として返し、エラーにはしない。
func (s *Service) Validate(ctx context.Context, userID, providerName string) (*provider.ValidationResult, error) {
	if !model.IsValidProvider(providerName) {
		return nil, model.NewInvalidProviderError(providerName)
	}

	key, err := s.keyRepo.FindByUserAndProvider(ctx, userID, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}
	if key == nil {
		return &provider.ValidationResult{
			Valid:   false,
			Message: "APIキーが登録されていません",
		}, nil
	}

	plaintext, err := s.cipher.Decrypt(key.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api key: %w", err)
	}

	result, err := s.validator.Validate(ctx, providerName, plaintext)
	if err != nil {
		// 上流障害は検証失敗として返す。HTTPエラーにはしない。
		slog.Warn("provider validation failed",
			slog.String("user_id", userID),
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		return &provider.ValidationResult{
			Valid:   false,
			Message: "プロバイダーAPIへの接続に失敗しました",
		}, nil
	}

	return result, nil
}
