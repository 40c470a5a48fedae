package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/aihub/internal/model"
)

func newTestValidator(serverURL string) *Validator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := NewValidator(http.DefaultClient, logger)
	v.chatGPTEndpoint = serverURL + "/v1/models"
	v.claudeEndpoint = serverURL + "/v1/messages"
	v.deepSeekEndpoint = serverURL + "/v1/chat/completions"
	return v
}

// TestValidate_ChatGPT_RequestShape はChatGPT検証リクエストの形式をテストする。
func TestValidate_ChatGPT_RequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	result, err := v.Validate(context.Background(), model.ProviderChatGPT, "sk-test")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	if gotPath != "/v1/models" {
		t.Errorf("path = %s, want /v1/models", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if !result.Valid {
		t.Error("expected valid result for 200 response")
	}
}

// TestValidate_Claude_RequestShape はClaude検証リクエストの形式をテストする。
func TestValidate_Claude_RequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey, gotVersion string
	var gotBody string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	result, err := v.Validate(context.Background(), model.ProviderClaude, "sk-ant-test")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %s, want /v1/messages", gotPath)
	}
	if gotAPIKey != "sk-ant-test" {
		t.Errorf("x-api-key = %q, want sk-ant-test", gotAPIKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", gotVersion, anthropicVersion)
	}
	if !strings.Contains(gotBody, `"max_tokens":1`) {
		t.Errorf("body should request minimal tokens, got %q", gotBody)
	}
	if !result.Valid {
		t.Error("expected valid result for 200 response")
	}
}

// TestValidate_DeepSeek_RequestShape はDeepSeek検証リクエストの形式をテストする。
func TestValidate_DeepSeek_RequestShape(t *testing.T) {
	var gotMethod, gotPath, gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	result, err := v.Validate(context.Background(), model.ProviderDeepSeek, "sk-ds-test")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %s, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-ds-test" {
		t.Errorf("Authorization = %q, want Bearer sk-ds-test", gotAuth)
	}
	if !result.Valid {
		t.Error("expected valid result for 200 response")
	}
}

// TestValidate_Unauthorized は401応答で無効判定になることをテストする。
func TestValidate_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	for _, p := range model.ValidProviders {
		t.Run(p, func(t *testing.T) {
			result, err := v.Validate(context.Background(), p, "bad-key")
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if result.Valid {
				t.Error("expected invalid result for 401 response")
			}
			if result.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

// TestValidate_Forbidden は403応答で無効判定になることをテストする。
func TestValidate_Forbidden(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	result, err := v.Validate(context.Background(), model.ProviderChatGPT, "revoked-key")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result for 403 response")
	}
}

// TestValidate_BadRequestStillValid は認証通過後の400がキー有効と判定されることをテストする。
// 最小リクエストはプロバイダーによってはバリデーションエラーになるが、認証は通っている。
func TestValidate_BadRequestStillValid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	v := newTestValidator(ts.URL)

	result, err := v.Validate(context.Background(), model.ProviderClaude, "sk-ant-test")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Error("expected valid result for 400 response (authentication passed)")
	}
}

// TestValidate_UnknownProvider は未対応プロバイダーでエラーになることをテストする。
func TestValidate_UnknownProvider(t *testing.T) {
	v := newTestValidator("http://unused.example.com")

	_, err := v.Validate(context.Background(), "gemini", "key")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

// TestValidate_NetworkError はネットワーク障害でエラーを返すことをテストする。
// 到達不能な場合は有効性を判定できないため、無効判定ではなくエラーにする。
func TestValidate_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // 即座に閉じて接続エラーを起こす

	v := newTestValidator(ts.URL)

	_, err := v.Validate(context.Background(), model.ProviderChatGPT, "sk-test")
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

// TestValidatorInterface はValidatorがインターフェースを正しく実装していることをテストする。
func TestValidatorInterface(t *testing.T) {
	var _ ValidatorService = NewValidator(http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
