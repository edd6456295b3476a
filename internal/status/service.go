// Package status はUI/APIが消費する読み取り専用の合成ビューを提供する。
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/stampcard/internal/ledger"
	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/repository"
)

// Status は台帳とプロフィールを合成した読み取り専用ビュー。
// ポーリングで任意の頻度で取得されることを想定する。
// LastUpdatedAtは常にRecentEvents先頭のcreated_atと一致する。
type Status struct {
	Stamps        int
	IsAdmin       bool
	LastUpdatedAt *time.Time
	RecentEvents  []*model.StampEvent
	Profile       *model.Profile
}

// Service はステータス投影のサービス層。変異は一切行わない。
type Service struct {
	statusRepo repository.StatusRepository
}

// NewService はServiceを生成する。
func NewService(statusRepo repository.StatusRepository) *Service {
	return &Service{statusRepo: statusRepo}
}

// Project は指定ユーザーの現在のステータスを返す。
// ユーザー行が未作成の場合はstamps=0のゼロ値ビューを返す（行は作成しない）。
// プロフィールが無い場合はProfile=nilを返す。
//
// 全行を単一スナップショットで読むため、並行する付与・リセットが
// コミットされても、スタンプ数・イベント・最終更新時刻の間に
// 時点のずれた組み合わせが返ることはない。
func (s *Service) Project(ctx context.Context, userID string) (*Status, error) {
	if userID == "" {
		return nil, model.NewBadRequestError("userId")
	}

	snap, err := s.statusRepo.Snapshot(ctx, userID, ledger.RecentEventLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to project status: %w", err)
	}

	st := &Status{}

	if snap.User != nil {
		st.Stamps = ledger.Clamp(snap.User.Stamps)
		st.IsAdmin = snap.User.IsAdmin
	}

	st.RecentEvents = snap.Events
	// 最終更新時刻は別クエリではなくイベント先頭から導出する
	if len(snap.Events) > 0 {
		last := snap.Events[0].CreatedAt
		st.LastUpdatedAt = &last
	}

	st.Profile = snap.Profile

	return st, nil
}
