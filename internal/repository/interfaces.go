// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/stampcard/internal/model"
)

// ErrDuplicateIdentity は (provider, provider_key) の一意制約違反を表す。
// 同一identityの同時作成レースで後着側に返る。呼び出し側は既存行を
// 読み直して解決する。
var ErrDuplicateIdentity = errors.New("auth identity already exists")

// UserRepository はユーザーデータの永続化インターフェース。
// スタンプ数の変異はすべてこのインターフェースを経由する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateIfAbsent は指定IDのユーザーが存在しなければstamps=0で作成し、
	// 存在有無にかかわらず現在の行を返す。同一IDの同時呼び出しは
	// 主キー制約で解決され、重複行は作られない。
	CreateIfAbsent(ctx context.Context, id string) (*model.User, error)

	// ApplyGrant はスタンプ+1とADDイベント追記を同一トランザクションで
	// 実行し、更新後のスタンプ数を返す。ユーザーが未作成の場合は
	// stamps=0で作成してから加算する。上限到達時もイベントは追記される。
	ApplyGrant(ctx context.Context, userID, reason string) (int, error)

	// ApplyReset はスタンプ0化とRESETイベント追記を同一トランザクションで
	// 実行する。既に0の場合もイベントは追記される。
	ApplyReset(ctx context.Context, userID, reason string) error

	// SetAdmin は管理者フラグを更新する。ユーザーが存在しない場合はエラー。
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
}

// StatusSnapshot はステータス投影の読み取り結果。単一スナップショットで
// 読まれるため、Stamps・Events・Profileは必ず同一時点の値になる。
type StatusSnapshot struct {
	// User はユーザー行。未作成の場合はnil。
	User *model.User
	// Events は直近イベントのcreated_at降順（同時刻はID降順）リスト。
	Events []*model.StampEvent
	// Profile はプロフィール行。未作成の場合はnil。
	Profile *model.Profile
}

// StatusRepository はステータス投影用の一括読み取りインターフェース。
// イベントの書き込みはUserRepositoryの変異トランザクション内でのみ行う。
type StatusRepository interface {
	// Snapshot はユーザー行、直近イベント（最大eventLimit件）、
	// プロフィールを単一の読み取り専用スナップショットで取得する。
	// 変異と並行して呼ばれても、古いスタンプ数と新しいイベントが
	// 混在した結果を返すことはない。
	Snapshot(ctx context.Context, userID string, eventLimit int) (*StatusSnapshot, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。
	// 見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Update はusername、description、job、hobbiesを更新する。
	// mail_addressは更新対象に含めない（作成後不変）。
	// 成功時、書き込んだupdated_atをprofileに反映する。
	Update(ctx context.Context, profile *model.Profile) error
}

// IdentityRepository はログインidentityの永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderKey は (provider, provider_key) でidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderKey(ctx context.Context, provider, providerKey string) (*model.AuthIdentity, error)

	// CreateUserWithProfile はユーザー、プロフィール、identityを
	// 同一トランザクションで作成する。(provider, provider_key) の
	// 一意制約違反時はErrDuplicateIdentityを返す。
	CreateUserWithProfile(ctx context.Context, user *model.User, profile *model.Profile, identity *model.AuthIdentity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
