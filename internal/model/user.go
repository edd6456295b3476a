// Package model はドメインモデルを定義する。
package model

import "time"

// User はスタンプカードの利用ユーザーを表す。
// IDは初回参照時または登録時に一度だけ採番され、以後不変。
type User struct {
	ID        string
	Stamps    int
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile はユーザーと1対1のプロフィール情報を表す。
// MailAddressは正規化済み（trim + 小文字）で、作成後は変更不可。
type Profile struct {
	UserID      string
	Username    string
	MailAddress string
	Description string
	Job         string
	Hobbies     string
	UpdatedAt   time.Time
}

// AuthIdentity はログイン手段とユーザーの紐付けを表す。
// (Provider, ProviderKey) の組は全体で一意であり、必ず1ユーザーに解決される。
// localプロバイダーの場合、ProviderKeyは正規化済みメールアドレス。
type AuthIdentity struct {
	ID          int64
	UserID      string
	Provider    string
	ProviderKey string
	CreatedAt   time.Time
}

// 対応するログインプロバイダー。
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
