// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/aihub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByVerificationToken は検証トークンの完全一致でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByVerificationToken(ctx context.Context, token string) (*model.User, error)

	// MarkVerified はユーザーを検証済みに遷移させる。
	// email_verifiedのセットとトークン・期限のクリアを1文で原子的に行う。
	MarkVerified(ctx context.Context, userID string) error

	// UpdateVerificationToken は検証トークンと期限を新しい値で上書きする。
	// 旧トークンはこの時点で無効になる。
	UpdateVerificationToken(ctx context.Context, userID, token string, expires time.Time) error

	// UpdatePassword はパスワードハッシュを更新する。
	// 既存セッションの無効化は行わない（意図的な簡略化）。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するapi_keys、chats、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// SessionStore契約（get/set/destroy）のPostgreSQL実装を想定する。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// APIKeyRepository は暗号化済みAPIキーの永続化インターフェース。
// 値は常にVaultのエンベロープであり、平文キーを扱ってはならない。
type APIKeyRepository interface {
	// Upsert は(user_id, provider)単位でキーを保存する。
	// 既存行がある場合はencrypted_keyを上書きする（単文の原子的UPSERT）。
	Upsert(ctx context.Context, key *model.APIKey) error

	// FindByUserAndProvider はユーザーとプロバイダーでキーを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndProvider(ctx context.Context, userID, provider string) (*model.APIKey, error)

	// ListByUserID はユーザーの全キーを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)

	// Delete はユーザーとプロバイダーでキーを削除する。対象がなくてもエラーにしない。
	Delete(ctx context.Context, userID, provider string) error
}

// ChatRepository はチャット履歴の永続化インターフェース。
type ChatRepository interface {
	// Create はチャットを作成する。
	Create(ctx context.Context, chat *model.Chat) error

	// FindByID は指定IDのチャットをメッセージ込みで取得する。
	// 見つからない場合はnilを返す。所有権の判定は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Chat, error)

	// ListByUserID はユーザーのチャット一覧をupdated_at降順で返す。
	// providerが空でない場合はプロバイダーで絞り込む。メッセージ本体は読み込まない。
	ListByUserID(ctx context.Context, userID, provider string) ([]*model.Chat, error)

	// UpdateMessages はメッセージ列とプレビュー・件数を更新する。
	UpdateMessages(ctx context.Context, chatID string, messages []model.Message, lastMessage string, messageCount int) error

	// UpdateTitle はチャットのタイトルを更新する。
	UpdateTitle(ctx context.Context, chatID, title string) error

	// DeleteByID は指定IDのチャットを削除する。
	DeleteByID(ctx context.Context, id string) error
}
