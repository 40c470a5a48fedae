// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/aihub/internal/model"
)

// SessionCookieName はセッションCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userEmailContextKey はリクエストコンテキストにメールアドレスを格納するためのキー。
var userEmailContextKey = contextKey("user_email")

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// CookieCodec はセッションCookie値の署名と検証を行う。
// Cookie値は "セッションID.HMAC-SHA256署名(hex)" の形式で、
// 改ざんされた値はデータベース参照前に弾かれる。
type CookieCodec struct {
	secret []byte
}

// NewCookieCodec はCookieCodecを生成する。
func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{secret: []byte(secret)}
}

// Encode はセッションIDに署名を付与したCookie値を返す。
func (c *CookieCodec) Encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

// Decode はCookie値の署名を検証し、セッションIDを取り出す。
// 署名の比較は一定時間で行う。
func (c *CookieCodec) Decode(value string) (string, bool) {
	sessionID, sig, found := strings.Cut(value, ".")
	if !found || sessionID == "" {
		return "", false
	}
	expected := c.sign(sessionID)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return sessionID, true
}

// sign はセッションIDのHMAC-SHA256署名をhexで返す。
func (c *CookieCodec) sign(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーID・メールアドレス・セッションIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(codec *CookieCodec, sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := resolveSession(r, codec, sessionFinder)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), session)))
		})
	}
}

// NewOptionalSessionMiddleware はセッションが解決できた場合のみ
// 認証情報をコンテキストに注入し、できない場合もリクエストを通すミドルウェアを返す。
// 認証状態で応答が変わるエンドポイント用。
func NewOptionalSessionMiddleware(codec *CookieCodec, sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, ok := resolveSession(r, codec, sessionFinder); ok {
				r = r.WithContext(contextWithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveSession はCookieの署名検証とセッション参照を行う。
func resolveSession(r *http.Request, codec *CookieCodec, sessionFinder SessionFinder) (*model.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	sessionID, ok := codec.Decode(cookie.Value)
	if !ok {
		return nil, false
	}

	session, err := sessionFinder.FindByID(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if session == nil {
		return nil, false
	}

	return session, true
}

// contextWithSession は認証情報をコンテキストに注入する。
func contextWithSession(ctx context.Context, session *model.Session) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, session.UserID)
	ctx = context.WithValue(ctx, userEmailContextKey, session.Email)
	return context.WithValue(ctx, sessionIDContextKey, session.ID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UserEmailFromContext はリクエストコンテキストからメールアドレスを取得する。
func UserEmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(userEmailContextKey).(string)
	if !ok || email == "" {
		return "", fmt.Errorf("user email not found in context")
	}
	return email, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。テスト用。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
