// Package model はドメインモデルを定義する。
package model

import "time"

// StampCap はユーザーが保持できるスタンプ数の上限。
const StampCap = 13

// EventType はスタンプ台帳イベントの種別を表す。
type EventType string

const (
	// EventTypeAdd はスタンプ+1のイベント種別。
	// 上限到達時も参加の記録としてイベントは追記される。
	EventTypeAdd EventType = "ADD"
	// EventTypeReset はスタンプ0リセットのイベント種別。
	EventTypeReset EventType = "RESET"
)

// 定義済みのイベント理由。Reasonは自由テキストだが、
// システム起点の変異はこの定数を使用する。
const (
	ReasonAttendance = "attendance"
	ReasonAdminGrant = "admin_grant"
	ReasonUserReset  = "user_reset"
)

// StampEvent はスタンプ数の変異履歴を表す追記専用レコード。
// 作成後の更新・削除は行われない。CreatedAtが順序の正となる。
type StampEvent struct {
	ID        int64
	UserID    string
	CreatedAt time.Time
	Reason    string
	EventType EventType
}
