package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/aihub/internal/model"
)

// PostgresAPIKeyRepo はPostgreSQLを使用したAPIキーリポジトリ。
type PostgresAPIKeyRepo struct {
	db *sql.DB
}

// NewPostgresAPIKeyRepo はPostgresAPIKeyRepoを生成する。
func NewPostgresAPIKeyRepo(db *sql.DB) *PostgresAPIKeyRepo {
	return &PostgresAPIKeyRepo{db: db}
}

// Upsert は(user_id, provider)単位でキーを保存する。
// 既存行がある場合はencrypted_keyとupdated_atのみ上書きする。
func (r *PostgresAPIKeyRepo) Upsert(ctx context.Context, key *model.APIKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, provider, encrypted_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, provider)
		 DO UPDATE SET encrypted_key = EXCLUDED.encrypted_key, updated_at = now()`,
		key.ID, key.UserID, key.Provider, key.EncryptedKey, key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert api key: %w", err)
	}
	return nil
}

// FindByUserAndProvider はユーザーとプロバイダーでキーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAPIKeyRepo) FindByUserAndProvider(ctx context.Context, userID, provider string) (*model.APIKey, error) {
	key := &model.APIKey{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		 FROM api_keys
		 WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&key.ID, &key.UserID, &key.Provider, &key.EncryptedKey, &key.CreatedAt, &key.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}

	return key, nil
}

// ListByUserID はユーザーの全キーをプロバイダー名順で返す。
func (r *PostgresAPIKeyRepo) ListByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		 FROM api_keys
		 WHERE user_id = $1
		 ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key := &model.APIKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.Provider, &key.EncryptedKey, &key.CreatedAt, &key.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return keys, nil
}

// Delete はユーザーとプロバイダーでキーを削除する。対象がなくてもエラーにしない。
func (r *PostgresAPIKeyRepo) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// compile-time interface check
var _ APIKeyRepository = (*PostgresAPIKeyRepo)(nil)
