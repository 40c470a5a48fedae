package handler

import (
	"context"
	"errors"

	"github.com/hitoshi/aihub/internal/auth"
	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/provider"
)

// AuthMetricsRecorder は認証イベントのメトリクス記録機能のインターフェースを定義する。
type AuthMetricsRecorder interface {
	RecordRegistration()
	RecordLoginSuccess()
	RecordLoginFailure()
}

// InstrumentedAuthService はAuthServiceInterfaceをラップし、
// 登録・ログインイベントをメトリクスに記録するアダプタ。
type InstrumentedAuthService struct {
	svc AuthServiceInterface
	rec AuthMetricsRecorder
}

// NewInstrumentedAuthService はInstrumentedAuthServiceを生成する。
func NewInstrumentedAuthService(svc AuthServiceInterface, rec AuthMetricsRecorder) *InstrumentedAuthService {
	return &InstrumentedAuthService{svc: svc, rec: rec}
}

// Register は登録処理を委譲し、成功時に登録数カウンタを加算する。
func (a *InstrumentedAuthService) Register(ctx context.Context, email, password string) (*auth.RegisterResult, error) {
	result, err := a.svc.Register(ctx, email, password)
	if err == nil {
		a.rec.RecordRegistration()
	}
	return result, err
}

// Login はログイン処理を委譲し、成否をメトリクスに記録する。
// インフラ障害による失敗はログイン失敗としてカウントしない。
func (a *InstrumentedAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	session, err := a.svc.Login(ctx, email, password)
	if err == nil {
		a.rec.RecordLoginSuccess()
	} else {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			a.rec.RecordLoginFailure()
		}
	}
	return session, err
}

func (a *InstrumentedAuthService) VerifyEmail(ctx context.Context, token string) (*model.User, *model.Session, error) {
	return a.svc.VerifyEmail(ctx, token)
}

func (a *InstrumentedAuthService) ResendVerification(ctx context.Context, email string) error {
	return a.svc.ResendVerification(ctx, email)
}

func (a *InstrumentedAuthService) Logout(ctx context.Context, sessionID string) error {
	return a.svc.Logout(ctx, sessionID)
}

func (a *InstrumentedAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return a.svc.GetCurrentUser(ctx, sessionID)
}

var _ AuthServiceInterface = (*InstrumentedAuthService)(nil)

// APIKeyMetricsRecorder はAPIキー操作のメトリクス記録機能のインターフェースを定義する。
type APIKeyMetricsRecorder interface {
	RecordVaultOperation(operation string)
	RecordProviderValidation(provider string, valid bool)
}

// InstrumentedAPIKeyService はAPIKeyServiceInterfaceをラップし、
// 暗号化・復号・キー検証の操作をメトリクスに記録するアダプタ。
type InstrumentedAPIKeyService struct {
	svc APIKeyServiceInterface
	rec APIKeyMetricsRecorder
}

// NewInstrumentedAPIKeyService はInstrumentedAPIKeyServiceを生成する。
func NewInstrumentedAPIKeyService(svc APIKeyServiceInterface, rec APIKeyMetricsRecorder) *InstrumentedAPIKeyService {
	return &InstrumentedAPIKeyService{svc: svc, rec: rec}
}

// Save は保存処理を委譲し、成功時に暗号化操作を記録する。
func (a *InstrumentedAPIKeyService) Save(ctx context.Context, userID, providerName, apiKey string) error {
	err := a.svc.Save(ctx, userID, providerName, apiKey)
	if err == nil {
		a.rec.RecordVaultOperation("encrypt")
	}
	return err
}

// List は一覧取得を委譲し、成功時に復号操作を記録する。
func (a *InstrumentedAPIKeyService) List(ctx context.Context, userID string) (map[string]string, error) {
	keys, err := a.svc.List(ctx, userID)
	if err == nil && len(keys) > 0 {
		a.rec.RecordVaultOperation("decrypt")
	}
	return keys, err
}

func (a *InstrumentedAPIKeyService) Delete(ctx context.Context, userID, providerName string) error {
	return a.svc.Delete(ctx, userID, providerName)
}

// Validate は検証処理を委譲し、結果をプロバイダー別に記録する。
func (a *InstrumentedAPIKeyService) Validate(ctx context.Context, userID, providerName string) (*provider.ValidationResult, error) {
	result, err := a.svc.Validate(ctx, userID, providerName)
	if err == nil && result != nil {
		a.rec.RecordProviderValidation(providerName, result.Valid)
	}
	return result, err
}

var _ APIKeyServiceInterface = (*InstrumentedAPIKeyService)(nil)
