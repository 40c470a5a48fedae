// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはIdentityコンポーネントの外に公開してはならない。
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	EmailVerified       bool
	VerificationToken   string    // 未検証の場合のみ値を持つ
	VerificationExpires time.Time // トークンの絶対期限（発行から24時間）
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session はユーザーのログインセッションを表す。
// クライアントには不透明なIDのみを渡し、実体はサーバー側ストアが保持する。
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time // 固定TTL。アクティビティによる延長は行わない
	CreatedAt time.Time
}
