package model

import "time"

// Message はチャット内の1発言を表す。
type Message struct {
	Role      string    `json:"role"` // "user" または "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat はユーザーのチャット履歴を表す。
// Messagesは一覧取得時には読み込まれない（プレビューにはLastMessageを使う）。
type Chat struct {
	ID           string
	UserID       string
	Title        string
	Provider     string
	Messages     []Message
	LastMessage  string // 最終メッセージの先頭100文字
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
