// Package email はResend APIによるメール送信機能を提供する。
// メールアドレス検証リンクの送信に使用する。
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultEndpoint はResendメール送信APIのエンドポイント。
	defaultEndpoint = "https://api.resend.com/emails"
	// maxRetries は送信失敗時の最大リトライ回数。
	maxRetries = 3
	// initialBackoff はリトライの初期待機時間。以後は倍々で増える。
	initialBackoff = 500 * time.Millisecond
)

// Client はResend APIのクライアント。
// APIキーが未設定の場合は送信をスキップする（開発環境向け）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	fromEmail  string
	appURL     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
	backoff    time.Duration
}

// NewClient はClient の新しいインスタンスを生成する。
// apiKeyが空文字列の場合、Configuredはfalseを返し送信は行われない。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, fromEmail, appURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		appURL:     appURL,
		endpoint:   defaultEndpoint,
		backoff:    initialBackoff,
	}
}

// Configured はメール送信が設定済みかどうかを返す。
// 未設定の場合、登録フローは検証ステップを省略して即時検証済みとする。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// sendRequest はResend APIのリクエストボディ。
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendVerificationEmail はメールアドレス検証リンクを送信する。
// 検証URLは APP_URL/verify-email?token=... の形式で組み立てる。
// 一時的な失敗（5xx、ネットワークエラー）は指数バックオフでリトライする。
// 4xxはリクエスト自体の問題なのでリトライしない。
func (c *Client) SendVerificationEmail(ctx context.Context, to, token string) error {
	if !c.Configured() {
		return fmt.Errorf("メール送信が設定されていません")
	}

	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", c.appURL, url.QueryEscape(token))

	body := sendRequest{
		From:    c.fromEmail,
		To:      []string{to},
		Subject: "メールアドレスの確認",
		HTML: fmt.Sprintf(
			`<p>ご登録ありがとうございます。</p>`+
				`<p>以下のリンクをクリックしてメールアドレスを確認してください。リンクの有効期限は24時間です。</p>`+
				`<p><a href="%s">メールアドレスを確認する</a></p>`+
				`<p>このメールに心当たりがない場合は破棄してください。</p>`,
			verifyURL,
		),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = c.send(ctx, payload)
		if lastErr == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(lastErr, &permanent) {
			return permanent.err
		}

		if attempt < maxRetries {
			c.logger.Warn("メール送信をリトライします",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("メール送信が%d回失敗しました: %w", maxRetries, lastErr)
}

// permanentError はリトライしても解決しない失敗を表す。
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// send は1回分の送信を実行する。
func (c *Client) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &permanentError{err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Resend APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	// レスポンスボディはエラー詳細のログ用にのみ読む
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		// サーバー側の一時エラーはリトライ対象
		c.logger.Error("Resend APIがサーバーエラーを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("Resend APIがステータス %d を返しました", resp.StatusCode)
	default:
		// 4xxはリクエスト自体の問題なのでリトライしない
		c.logger.Error("Resend APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("response", string(respBody)),
		)
		return &permanentError{err: fmt.Errorf("Resend APIがステータス %d を返しました", resp.StatusCode)}
	}
}
