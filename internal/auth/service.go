// Package auth はユーザー登録、ログイン、メールアドレス検証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/repository"
)

const (
	// bcryptCost はパスワードハッシュのコストパラメータ。
	bcryptCost = 10
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 6
	// verificationTokenTTL は検証トークンの有効期間。
	verificationTokenTTL = 24 * time.Hour
)

// emailPattern はメールアドレスの形式チェック。
// 厳密なRFC準拠ではなく、空白を含まない local@domain.tld 形式のみ要求する。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailSender はメールアドレス検証メールの送信インターフェース。
type EmailSender interface {
	// Configured は送信設定が有効かどうかを返す。
	Configured() bool
	// SendVerificationEmail は検証リンク付きメールを送信する。
	SendVerificationEmail(ctx context.Context, to, token string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterResult はユーザー登録の結果。
// メール送信が未設定の環境では検証をスキップし、Sessionが即時発行される。
type RegisterResult struct {
	User                 *model.User
	Session              *model.Session
	VerificationRequired bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	emailSender EmailSender
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	emailSender EmailSender,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		emailSender: emailSender,
		config:      config,
	}
}

// Register は新規ユーザーを登録する。
// メール送信が設定済みの場合は検証トークンを発行してメールを送り、
// セッションは発行しない（検証完了までログイン不可）。
// 未設定の場合は即時検証済みとしてセッションを発行する。
func (s *Service) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	verificationRequired := s.emailSender.Configured()
	if verificationRequired {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification token: %w", err)
		}
		user.VerificationToken = token
		user.VerificationExpires = now.Add(verificationTokenTTL)
	} else {
		// メール送信が未設定の開発環境では検証ステップを省略する
		user.EmailVerified = true
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// 事前チェックをすり抜けた同時登録のバックストップ
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	result := &RegisterResult{
		User:                 user,
		VerificationRequired: verificationRequired,
	}

	if verificationRequired {
		// 送信失敗は登録自体を失敗にしない。ユーザーは再送APIでリカバリできる。
		if err := s.emailSender.SendVerificationEmail(ctx, user.Email, user.VerificationToken); err != nil {
			slog.Error("failed to send verification email",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		slog.Info("new user registered, verification pending",
			slog.String("user_id", user.ID),
		)
		return result, nil
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	result.Session = session

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
	)
	return result, nil
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// ユーザーの存在有無は応答から区別できないよう、どちらも同じ資格情報エラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.EmailVerified {
		return nil, model.NewEmailNotVerifiedError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)
	return session, nil
}

// VerifyEmail は検証トークンを消費してユーザーを検証済みに遷移させ、
// セッションを発行する。トークンは使い捨てで、検証成功時にクリアされる。
// 期限切れの判定は状態を変更しない（再送で同じトークンからやり直せる）。
func (s *Service) VerifyEmail(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, model.NewValidationError("検証トークンが指定されていません", "メール内のリンクからアクセスしてください")
	}

	user, err := s.userRepo.FindByVerificationToken(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by token: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidTokenError()
	}

	if time.Now().After(user.VerificationExpires) {
		return nil, nil, model.NewTokenExpiredError()
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	user.EmailVerified = true
	user.VerificationToken = ""
	user.VerificationExpires = time.Time{}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("email verified",
		slog.String("user_id", user.ID),
	)
	return user, session, nil
}

// ResendVerification は検証メールを再送する。
// 新しいトークンを発行して旧トークンを無効化する。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.EmailVerified {
		return model.NewAlreadyVerifiedError()
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	expires := time.Now().Add(verificationTokenTTL)

	if err := s.userRepo.UpdateVerificationToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	slog.Info("verification email resent",
		slog.String("user_id", user.ID),
	)
	return nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetSession はセッションIDからセッションを取得する。
// 存在しない、または期限切れの場合はnilを返す。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// セッションは残っているがユーザーが削除済みの場合
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// validateCredentials は登録入力の形式を検証する。
func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return model.NewValidationError("メールアドレスとパスワードは必須です", "両方の項目を入力してください")
	}
	if !emailPattern.MatchString(email) {
		return model.NewValidationError("メールアドレスの形式が正しくありません", "有効なメールアドレスを入力してください")
	}
	if len(password) < minPasswordLength {
		return model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上である必要があります", minPasswordLength),
			"より長いパスワードを設定してください",
		)
	}
	return nil
}

// generateToken は暗号的に安全な32バイトのランダムトークンを生成する。
// セッションIDとメール検証トークンの両方に使用する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
