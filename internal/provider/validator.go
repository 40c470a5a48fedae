// Package provider はAIプロバイダーAPIキーの疎通検証機能を提供する。
// 各プロバイダーの最小コストのエンドポイントに実リクエストを送り、
// 認証エラーかどうかでキーの有効性を判定する。
package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/aihub/internal/model"
)

const (
	defaultChatGPTEndpoint  = "https://api.openai.com/v1/models"
	defaultClaudeEndpoint   = "https://api.anthropic.com/v1/messages"
	defaultDeepSeekEndpoint = "https://api.deepseek.com/v1/chat/completions"

	// anthropicVersion はClaude APIに必須のバージョンヘッダー値。
	anthropicVersion = "2023-06-01"
)

// ValidationResult はAPIキー検証の結果。
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidatorService はAPIキー検証機能のインターフェースを定義する。
type ValidatorService interface {
	// Validate は指定プロバイダーに対してAPIキーの疎通検証を行う。
	// 認証エラー（401/403）の場合はValid=falseの結果を返す。
	// ネットワーク障害などで判定できない場合はエラーを返す。
	Validate(ctx context.Context, providerName, apiKey string) (*ValidationResult, error)
}

// Validator はValidatorServiceの実装。
// 状態を持たず、各検証リクエストは独立している。
type Validator struct {
	httpClient *http.Client
	logger     *slog.Logger

	// テスト用にエンドポイントを差し替え可能
	chatGPTEndpoint  string
	claudeEndpoint   string
	deepSeekEndpoint string
}

// NewValidator はValidator の新しいインスタンスを生成する。
func NewValidator(httpClient *http.Client, logger *slog.Logger) *Validator {
	return &Validator{
		httpClient:       httpClient,
		logger:           logger,
		chatGPTEndpoint:  defaultChatGPTEndpoint,
		claudeEndpoint:   defaultClaudeEndpoint,
		deepSeekEndpoint: defaultDeepSeekEndpoint,
	}
}

// Validate は指定プロバイダーに対してAPIキーの疎通検証を行う。
func (v *Validator) Validate(ctx context.Context, providerName, apiKey string) (*ValidationResult, error) {
	var req *http.Request
	var err error

	switch providerName {
	case model.ProviderChatGPT:
		req, err = v.chatGPTRequest(ctx, apiKey)
	case model.ProviderClaude:
		req, err = v.claudeRequest(ctx, apiKey)
	case model.ProviderDeepSeek:
		req, err = v.deepSeekRequest(ctx, apiKey)
	default:
		return nil, fmt.Errorf("未対応のプロバイダーです: %s", providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("検証リクエストの作成に失敗しました: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Error("プロバイダーAPIの呼び出しに失敗しました",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プロバイダーAPIへの接続に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	// 401/403は認証情報の問題、それ以外のステータスはキー自体は受理されたとみなす。
	// 最小リクエストのためプロバイダーによっては400が返るが、認証は通過している。
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		v.logger.Info("APIキーの検証に失敗しました",
			slog.String("provider", providerName),
			slog.Int("http_status", resp.StatusCode),
		)
		return &ValidationResult{
			Valid:   false,
			Message: "APIキーが無効です",
		}, nil
	}

	return &ValidationResult{
		Valid:   true,
		Message: "APIキーは有効です",
	}, nil
}

// chatGPTRequest はOpenAIのモデル一覧エンドポイントへのGETリクエストを作る。
// 読み取り専用で課金が発生しない。
func (v *Validator) chatGPTRequest(ctx context.Context, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.chatGPTEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// claudeRequest はAnthropicのメッセージエンドポイントへの最小POSTリクエストを作る。
// max_tokens=1の最小リクエストで認証だけを確認する。
func (v *Validator) claudeRequest(ctx context.Context, apiKey string) (*http.Request, error) {
	body := []byte(`{"model":"claude-3-haiku-20240307","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.claudeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// deepSeekRequest はDeepSeekのチャット補完エンドポイントへの最小POSTリクエストを作る。
func (v *Validator) deepSeekRequest(ctx context.Context, apiKey string) (*http.Request, error) {
	body := []byte(`{"model":"deepseek-chat","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.deepSeekEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// compile-time interface check
var _ ValidatorService = (*Validator)(nil)
