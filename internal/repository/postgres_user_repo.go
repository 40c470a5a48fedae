package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/aihub/internal/model"
)

// ErrDuplicateEmail は一意制約違反によるメールアドレス重複を示す。
// サービス層での事前チェックをすり抜けた競合時のバックストップ。
var ErrDuplicateEmail = errors.New("repository: email already registered")

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, email_verified, verification_token, verification_expires, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.PasswordHash, user.EmailVerified,
		nullString(user.VerificationToken), nullTime(user.VerificationExpires),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByVerificationToken は検証トークンの完全一致でユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return r.findOne(ctx, `WHERE verification_token = $1`, token)
}

// MarkVerified はユーザーを検証済みに遷移させる。
// フラグのセットとトークン・期限のクリアを1文で原子的に行う。
func (r *PostgresUserRepo) MarkVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET email_verified = TRUE, verification_token = NULL, verification_expires = NULL, updated_at = now()
		 WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// UpdateVerificationToken は検証トークンと期限を新しい値で上書きする。
func (r *PostgresUserRepo) UpdateVerificationToken(ctx context.Context, userID, token string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET verification_token = $2, verification_expires = $3, updated_at = now()
		 WHERE id = $1`,
		userID, token, expires,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するapi_keys、chats、sessionsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// findOne は条件句を指定して1件取得する共通処理。
func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	var token sql.NullString
	var expires sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, email_verified, verification_token, verification_expires, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.EmailVerified,
		&token, &expires, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if token.Valid {
		user.VerificationToken = token.String
	}
	if expires.Valid {
		user.VerificationExpires = expires.Time
	}

	return user, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime はゼロ値をNULLに変換する。
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
