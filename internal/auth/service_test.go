package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	createFn                    func(ctx context.Context, user *model.User) error
	findByIDFn                  func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn               func(ctx context.Context, email string) (*model.User, error)
	findByVerificationTokenFn   func(ctx context.Context, token string) (*model.User, error)
	markVerifiedFn              func(ctx context.Context, userID string) error
	updateVerificationTokenFn   func(ctx context.Context, userID, token string, expires time.Time) error
	updatePasswordFn            func(ctx context.Context, userID, passwordHash string) error
	deleteByIDFn                func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	if m.findByVerificationTokenFn != nil {
		return m.findByVerificationTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockUserRepo) MarkVerified(ctx context.Context, userID string) error {
	if m.markVerifiedFn != nil {
		return m.markVerifiedFn(ctx, userID)
	}
	return nil
}

func (m *mockUserRepo) UpdateVerificationToken(ctx context.Context, userID, token string, expires time.Time) error {
	if m.updateVerificationTokenFn != nil {
		return m.updateVerificationTokenFn(ctx, userID, token, expires)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, userID, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
	deleteExpiredFn  func(ctx context.Context) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

type mockEmailSender struct {
	configured bool
	sendFn     func(ctx context.Context, to, token string) error
}

func (m *mockEmailSender) Configured() bool {
	return m.configured
}

func (m *mockEmailSender) SendVerificationEmail(ctx context.Context, to, token string) error {
	if m.sendFn != nil {
		return m.sendFn(ctx, to, token)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ EmailSender = (*mockEmailSender)(nil)

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo, sender *mockEmailSender) *Service {
	return NewService(userRepo, sessionRepo, sender, ServiceConfig{SessionMaxAge: 604800})
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

// --- Register ---

// TestRegister_WithEmailConfigured はメール設定済み環境での登録をテストする。
// 検証トークンが発行され、セッションは発行されない。
func TestRegister_WithEmailConfigured(t *testing.T) {
	var createdUser *model.User
	var sentTo, sentToken string

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Error("session should not be created when verification is required")
			return nil
		},
	}
	sender := &mockEmailSender{
		configured: true,
		sendFn: func(ctx context.Context, to, token string) error {
			sentTo = to
			sentToken = token
			return nil
		},
	}

	svc := newTestService(userRepo, sessionRepo, sender)

	result, err := svc.Register(context.Background(), "user@example.com", "password123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if !result.VerificationRequired {
		t.Error("expected VerificationRequired = true")
	}
	if result.Session != nil {
		t.Error("expected no session when verification is required")
	}
	if createdUser == nil {
		t.Fatal("user was not created")
	}
	if createdUser.EmailVerified {
		t.Error("user should not be verified yet")
	}
	if createdUser.VerificationToken == "" {
		t.Error("verification token should be set")
	}
	if createdUser.VerificationExpires.IsZero() {
		t.Error("verification expiry should be set")
	}
	if createdUser.PasswordHash == "password123" {
		t.Error("password must not be stored in plaintext")
	}
	if sentTo != "user@example.com" {
		t.Errorf("verification email sent to %q, want user@example.com", sentTo)
	}
	if sentToken != createdUser.VerificationToken {
		t.Error("sent token should match stored token")
	}
}

// TestRegister_WithoutEmailConfigured はメール未設定環境での登録をテストする。
// 即時検証済みとなり、セッションが発行される。
func TestRegister_WithoutEmailConfigured(t *testing.T) {
	var createdUser *model.User
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	sender := &mockEmailSender{configured: false}

	svc := newTestService(userRepo, sessionRepo, sender)

	result, err := svc.Register(context.Background(), "user@example.com", "password123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if result.VerificationRequired {
		t.Error("expected VerificationRequired = false")
	}
	if result.Session == nil {
		t.Fatal("expected session to be created")
	}
	if createdUser == nil || !createdUser.EmailVerified {
		t.Error("user should be auto-verified without email configuration")
	}
	if createdSession == nil {
		t.Fatal("session was not persisted")
	}
	if createdSession.UserID != createdUser.ID {
		t.Error("session should belong to the created user")
	}
	if createdSession.Email != "user@example.com" {
		t.Errorf("session email = %q, want user@example.com", createdSession.Email)
	}
}

// TestRegister_ValidationErrors は入力バリデーションをテストする。
func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"空のメールアドレス", "", "password123"},
		{"空のパスワード", "user@example.com", ""},
		{"アットマークのないメールアドレス", "userexample.com", "password123"},
		{"ドメインのないメールアドレス", "user@", "password123"},
		{"TLDのないメールアドレス", "user@example", "password123"},
		{"空白を含むメールアドレス", "us er@example.com", "password123"},
		{"短すぎるパスワード", "user@example.com", "12345"},
	}

	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.email, tt.password)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeValidation {
				t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeValidation)
			}
		})
	}
}

// TestRegister_DuplicateEmail は登録済みメールアドレスの拒否をテストする。
func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing", Email: email}, nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Register(context.Background(), "user@example.com", "password123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeDuplicateEmail)
	}
}

// TestRegister_DuplicateEmailRace は同時登録の一意制約違反が重複エラーに変換されることをテストする。
func TestRegister_DuplicateEmailRace(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Register(context.Background(), "user@example.com", "password123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeDuplicateEmail)
	}
}

// TestRegister_EmailSendFailureDoesNotFail は検証メール送信失敗が登録を失敗させないことをテストする。
func TestRegister_EmailSendFailureDoesNotFail(t *testing.T) {
	userRepo := &mockUserRepo{}
	sender := &mockEmailSender{
		configured: true,
		sendFn: func(ctx context.Context, to, token string) error {
			return errors.New("resend unavailable")
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, sender)

	result, err := svc.Register(context.Background(), "user@example.com", "password123")
	if err != nil {
		t.Fatalf("Register should succeed despite email failure, got %v", err)
	}
	if !result.VerificationRequired {
		t.Error("expected VerificationRequired = true")
	}
}

// --- Login ---

// TestLogin_Success は正しい資格情報でのログインをテストする。
func TestLogin_Success(t *testing.T) {
	hash := mustHash(t, "password123")
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:            "user-1",
				Email:         email,
				PasswordHash:  hash,
				EmailVerified: true,
			}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(userRepo, sessionRepo, &mockEmailSender{})

	session, err := svc.Login(context.Background(), "user@example.com", "password123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if session.UserID != "user-1" {
		t.Errorf("session user = %s, want user-1", session.UserID)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
	if createdSession == nil {
		t.Fatal("session was not persisted")
	}
	wantExpiry := time.Now().Add(604800 * time.Second)
	if d := createdSession.ExpiresAt.Sub(wantExpiry); d < -time.Minute || d > time.Minute {
		t.Errorf("session expiry = %v, want about %v", createdSession.ExpiresAt, wantExpiry)
	}
}

// TestLogin_UnknownEmail は未登録メールアドレスが資格情報エラーになることをテストする。
// ユーザーの存在有無が応答から区別できないことを確認する。
func TestLogin_UnknownEmail(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

// TestLogin_WrongPassword は誤ったパスワードが資格情報エラーになることをテストする。
func TestLogin_WrongPassword(t *testing.T) {
	hash := mustHash(t, "correct-password")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash, EmailVerified: true}, nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Login(context.Background(), "user@example.com", "wrong-password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

// TestLogin_EmailNotVerified は未検証ユーザーのログイン拒否をテストする。
// パスワードが正しい場合のみ未検証エラーを返す。
func TestLogin_EmailNotVerified(t *testing.T) {
	hash := mustHash(t, "password123")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash, EmailVerified: false}, nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Login(context.Background(), "user@example.com", "password123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeEmailNotVerified {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeEmailNotVerified)
	}
}

// TestLogin_WrongPasswordBeforeVerificationCheck は未検証かつパスワード誤りの場合に
// 資格情報エラーが優先されることをテストする。
func TestLogin_WrongPasswordBeforeVerificationCheck(t *testing.T) {
	hash := mustHash(t, "correct-password")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash, EmailVerified: false}, nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.Login(context.Background(), "user@example.com", "wrong-password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

// --- VerifyEmail ---

// TestVerifyEmail_Success は有効なトークンでの検証をテストする。
// 検証成功時にはセッションも発行される。
func TestVerifyEmail_Success(t *testing.T) {
	var markedUserID string
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		findByVerificationTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return &model.User{
				ID:                  "user-1",
				Email:               "user@example.com",
				VerificationToken:   token,
				VerificationExpires: time.Now().Add(time.Hour),
			}, nil
		},
		markVerifiedFn: func(ctx context.Context, userID string) error {
			markedUserID = userID
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(userRepo, sessionRepo, &mockEmailSender{})

	user, session, err := svc.VerifyEmail(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}

	if markedUserID != "user-1" {
		t.Errorf("marked user = %s, want user-1", markedUserID)
	}
	if !user.EmailVerified {
		t.Error("returned user should be verified")
	}
	if user.VerificationToken != "" {
		t.Error("verification token should be cleared")
	}
	if session == nil || createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if session.UserID != "user-1" {
		t.Errorf("session user = %s, want user-1", session.UserID)
	}
}

// TestVerifyEmail_EmptyToken は空トークンがバリデーションエラーになることをテストする。
func TestVerifyEmail_EmptyToken(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	_, _, err := svc.VerifyEmail(context.Background(), "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeValidation)
	}
}

// TestVerifyEmail_UnknownToken は未知のトークンが無効トークンエラーになることをテストする。
func TestVerifyEmail_UnknownToken(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	_, _, err := svc.VerifyEmail(context.Background(), "unknown-token")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidToken {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeInvalidToken)
	}
}

// TestVerifyEmail_ExpiredToken は期限切れトークンが期限切れエラーになることをテストする。
func TestVerifyEmail_ExpiredToken(t *testing.T) {
	userRepo := &mockUserRepo{
		findByVerificationTokenFn: func(ctx context.Context, token string) (*model.User, error) {
			return &model.User{
				ID:                  "user-1",
				VerificationToken:   token,
				VerificationExpires: time.Now().Add(-time.Hour),
			}, nil
		},
		markVerifiedFn: func(ctx context.Context, userID string) error {
			t.Error("MarkVerified should not be called for expired token")
			return nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{})

	_, _, err := svc.VerifyEmail(context.Background(), "expired-token")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeTokenExpired {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeTokenExpired)
	}
}

// --- ResendVerification ---

// TestResendVerification_Success は再送で新トークンが発行されることをテストする。
func TestResendVerification_Success(t *testing.T) {
	var updatedToken string
	var sentToken string

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:                "user-1",
				Email:             email,
				EmailVerified:     false,
				VerificationToken: "old-token",
			}, nil
		},
		updateVerificationTokenFn: func(ctx context.Context, userID, token string, expires time.Time) error {
			updatedToken = token
			return nil
		},
	}
	sender := &mockEmailSender{
		configured: true,
		sendFn: func(ctx context.Context, to, token string) error {
			sentToken = token
			return nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, sender)

	if err := svc.ResendVerification(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}

	if updatedToken == "" {
		t.Fatal("new verification token should be stored")
	}
	if updatedToken == "old-token" {
		t.Error("new token should differ from old token")
	}
	if sentToken != updatedToken {
		t.Error("sent token should match stored token")
	}
}

// TestResendVerification_UnknownUser は未登録メールアドレスがユーザー不在エラーになることをテストする。
func TestResendVerification_UnknownUser(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{configured: true})

	err := svc.ResendVerification(context.Background(), "nobody@example.com")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

// TestResendVerification_AlreadyVerified は検証済みユーザーへの再送が拒否されることをテストする。
func TestResendVerification_AlreadyVerified(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, EmailVerified: true}, nil
		},
	}

	svc := newTestService(userRepo, &mockSessionRepo{}, &mockEmailSender{configured: true})

	err := svc.ResendVerification(context.Background(), "user@example.com")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeAlreadyVerified {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeAlreadyVerified)
	}
}

// --- Logout / GetSession / GetCurrentUser ---

// TestLogout_DeletesSession はログアウトでセッションが削除されることをテストする。
func TestLogout_DeletesSession(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}

	svc := newTestService(&mockUserRepo{}, sessionRepo, &mockEmailSender{})

	if err := svc.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if deletedID != "session-1" {
		t.Errorf("deleted session = %s, want session-1", deletedID)
	}
}

// TestLogout_EmptySessionID は空のセッションIDでエラーになることをテストする。
func TestLogout_EmptySessionID(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

// TestGetSession_Missing は存在しないセッションでnilが返ることをテストする。
func TestGetSession_Missing(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	session, err := svc.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if session != nil {
		t.Error("expected nil session")
	}
}

// TestGetCurrentUser_Success はセッションからユーザーが取得できることをテストする。
func TestGetCurrentUser_Success(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", Email: "user@example.com"}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com", EmailVerified: true}, nil
		},
	}

	svc := newTestService(userRepo, sessionRepo, &mockEmailSender{})

	user, err := svc.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %s, want user-1", user.ID)
	}
}

// TestGetCurrentUser_NoSession はセッションがない場合に未認証エラーになることをテストする。
func TestGetCurrentUser_NoSession(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockEmailSender{})

	_, err := svc.GetCurrentUser(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeUnauthorized)
	}
}

// TestGetCurrentUser_UserDeleted はセッションが残っているがユーザーが削除済みの場合をテストする。
func TestGetCurrentUser_UserDeleted(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "ghost"}, nil
		},
	}

	svc := newTestService(&mockUserRepo{}, sessionRepo, &mockEmailSender{})

	_, err := svc.GetCurrentUser(context.Background(), "session-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeUnauthorized)
	}
}
