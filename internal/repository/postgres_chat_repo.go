package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/aihub/internal/model"
)

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
// メッセージ列はJSONBカラムに丸ごと格納する。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

// Create はチャットを作成する。
func (r *PostgresChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	messages, err := marshalMessages(chat.Messages)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, provider, messages, last_message, message_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chat.ID, chat.UserID, chat.Title, chat.Provider,
		messages, chat.LastMessage, chat.MessageCount,
		chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

// FindByID は指定IDのチャットをメッセージ込みで取得する。
// 見つからない場合はnilを返す。所有権の判定は呼び出し側で行う。
func (r *PostgresChatRepo) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	chat := &model.Chat{}
	var messages []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, provider, messages, last_message, message_count, created_at, updated_at
		 FROM chats
		 WHERE id = $1`,
		id,
	).Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider,
		&messages, &chat.LastMessage, &chat.MessageCount,
		&chat.CreatedAt, &chat.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}

	if err := json.Unmarshal(messages, &chat.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat messages: %w", err)
	}

	return chat, nil
}

// ListByUserID はユーザーのチャット一覧をupdated_at降順で返す。
// providerが空でない場合はプロバイダーで絞り込む。
// 一覧表示ではメッセージ本体を読み込まず、プレビューと件数のみ返す。
func (r *PostgresChatRepo) ListByUserID(ctx context.Context, userID, provider string) ([]*model.Chat, error) {
	query := `SELECT id, user_id, title, provider, last_message, message_count, created_at, updated_at
		 FROM chats
		 WHERE user_id = $1`
	args := []any{userID}
	if provider != "" {
		query += ` AND provider = $2`
		args = append(args, provider)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []*model.Chat
	for rows.Next() {
		chat := &model.Chat{}
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider,
			&chat.LastMessage, &chat.MessageCount, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}

	return chats, nil
}

// UpdateMessages はメッセージ列とプレビュー・件数を更新する。
func (r *PostgresChatRepo) UpdateMessages(ctx context.Context, chatID string, messages []model.Message, lastMessage string, messageCount int) error {
	data, err := marshalMessages(messages)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE chats
		 SET messages = $2, last_message = $3, message_count = $4, updated_at = now()
		 WHERE id = $1`,
		chatID, data, lastMessage, messageCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat messages: %w", err)
	}
	return nil
}

// UpdateTitle はチャットのタイトルを更新する。
func (r *PostgresChatRepo) UpdateTitle(ctx context.Context, chatID, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chats SET title = $2, updated_at = now() WHERE id = $1`,
		chatID, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのチャットを削除する。
func (r *PostgresChatRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// marshalMessages はメッセージ列をJSONBカラム用に直列化する。
// nilはNULLではなく空配列として格納する。
func marshalMessages(messages []model.Message) ([]byte, error) {
	if messages == nil {
		messages = []model.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat messages: %w", err)
	}
	return data, nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)
