// Package chat はチャット履歴管理のドメインロジックを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aihub/internal/model"
	"github.com/hitoshi/aihub/internal/repository"
)

// previewLength はlast_messageプレビューの最大文字数。
const previewLength = 100

// Sanitizer はメッセージ本文のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// CreateParams はチャット作成の入力。
// IDはクライアント指定を許容し、空の場合はサーバーで生成する。
type CreateParams struct {
	ID       string
	Title    string
	Provider string
	Messages []model.Message
}

// Service はチャット履歴のサービス層。
// 全操作は所有権の検証を行う: チャットが存在しない場合はNotFound、
// 存在するが他ユーザーの所有物の場合はForbiddenを返す。
type Service struct {
	chatRepo  repository.ChatRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(chatRepo repository.ChatRepository, sanitizer Sanitizer) *Service {
	return &Service{
		chatRepo:  chatRepo,
		sanitizer: sanitizer,
	}
}

// List はユーザーのチャット一覧を返す。providerが空でない場合は絞り込む。
// 一覧にはメッセージ本体は含まれない。
func (s *Service) List(ctx context.Context, userID, provider string) ([]*model.Chat, error) {
	if provider != "" && !model.IsValidProvider(provider) {
		return nil, model.NewInvalidProviderError(provider)
	}

	chats, err := s.chatRepo.ListByUserID(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	return chats, nil
}

// Get は指定チャットをメッセージ込みで取得する。
func (s *Service) Get(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	return s.loadOwned(ctx, userID, chatID)
}

// Create はチャットを作成する。メッセージ本文は保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*model.Chat, error) {
	if params.Title == "" {
		return nil, model.NewValidationError("タイトルが指定されていません", "チャットのタイトルを入力してください")
	}
	if !model.IsValidProvider(params.Provider) {
		return nil, model.NewInvalidProviderError(params.Provider)
	}

	id := params.ID
	if id == "" {
		id = uuid.New().String()
	}

	messages := s.sanitizeMessages(params.Messages)
	now := time.Now()
	chat := &model.Chat{
		ID:           id,
		UserID:       userID,
		Title:        params.Title,
		Provider:     params.Provider,
		Messages:     messages,
		LastMessage:  preview(messages),
		MessageCount: len(messages),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	slog.Info("chat created",
		slog.String("user_id", userID),
		slog.String("chat_id", chat.ID),
		slog.String("provider", chat.Provider),
	)
	return chat, nil
}

// UpdateMessages はメッセージ列を丸ごと置き換える。
// last_messageプレビューとmessage_countはここで再計算される。
func (s *Service) UpdateMessages(ctx context.Context, userID, chatID string, messages []model.Message) (*model.Chat, error) {
	chat, err := s.loadOwned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	sanitized := s.sanitizeMessages(messages)
	lastMessage := preview(sanitized)
	if err := s.chatRepo.UpdateMessages(ctx, chatID, sanitized, lastMessage, len(sanitized)); err != nil {
		return nil, fmt.Errorf("failed to update chat messages: %w", err)
	}

	chat.Messages = sanitized
	chat.LastMessage = lastMessage
	chat.MessageCount = len(sanitized)
	chat.UpdatedAt = time.Now()
	return chat, nil
}

// UpdateTitle はチャットのタイトルを変更する。
func (s *Service) UpdateTitle(ctx context.Context, userID, chatID, title string) (*model.Chat, error) {
	if title == "" {
		return nil, model.NewValidationError("タイトルが指定されていません", "チャットのタイトルを入力してください")
	}

	chat, err := s.loadOwned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.chatRepo.UpdateTitle(ctx, chatID, title); err != nil {
		return nil, fmt.Errorf("failed to update chat title: %w", err)
	}

	chat.Title = title
	chat.UpdatedAt = time.Now()
	return chat, nil
}

// Delete はチャットを削除する。
func (s *Service) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := s.loadOwned(ctx, userID, chatID); err != nil {
		return err
	}

	if err := s.chatRepo.DeleteByID(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	slog.Info("chat deleted",
		slog.String("user_id", userID),
		slog.String("chat_id", chatID),
	)
	return nil
}

// loadOwned はチャットを取得し所有権を検証する。
// 存在しない場合はNotFound、他ユーザーの所有物の場合はForbiddenを返す。
// この順序により、存在の有無と権限の有無が応答から区別できる。
func (s *Service) loadOwned(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	if chat == nil {
		return nil, model.NewChatNotFoundError(chatID)
	}
	if chat.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return chat, nil
}

// sanitizeMessages は全メッセージの本文をサニタイズする。
func (s *Service) sanitizeMessages(messages []model.Message) []model.Message {
	sanitized := make([]model.Message, len(messages))
	for i, msg := range messages {
		msg.Content = s.sanitizer.Sanitize(msg.Content)
		sanitized[i] = msg
	}
	return sanitized
}

// preview は最終メッセージの先頭100文字を一覧表示用に切り出す。
func preview(messages []model.Message) string {
	if len(messages) == 0 {
		return ""
	}
	content := []rune(messages[len(messages)-1].Content)
	if len(content) <= previewLength {
		return string(content)
	}
	return string(content[:previewLength])
}
