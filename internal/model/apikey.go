package model

import "time"

// 対応するAIプロバイダーの識別子。
const (
	ProviderChatGPT  = "chatgpt"
	ProviderClaude   = "claude"
	ProviderDeepSeek = "deepseek"
)

// ValidProviders は保存・検証を許可するプロバイダーの一覧。
var ValidProviders = []string{ProviderChatGPT, ProviderClaude, ProviderDeepSeek}

// IsValidProvider はプロバイダー識別子が対応一覧に含まれるかを判定する。
func IsValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// APIKey はユーザーが登録したプロバイダーAPIキーのレコードを表す。
// EncryptedKeyはVaultが生成した自己完結型エンベロープであり、
// 平文のキーを保持・ログ出力してはならない。
type APIKey struct {
	ID           string
	UserID       string
	Provider     string
	EncryptedKey string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
