// Package ledger はスタンプ数とイベント履歴を管理する台帳のドメインロジックを提供する。
//
// スタンプ数の変異（付与・リセット）は必ず1件のイベント追記と対で行われ、
// リポジトリ層のトランザクションにより片方だけが可視になることはない。
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/repository"
)

// RecentEventLimit は直近イベント履歴の取得件数。
const RecentEventLimit = 3

// milestones はクライアントが一度だけ祝福演出を出すスタンプ数の閾値。
var milestones = []int{5, 10}

// Clamp はスタンプ数を 0〜model.StampCap の範囲に丸める。
// 範囲外の値が保存されていても読み取り境界で必ず適用する。
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > model.StampCap {
		return model.StampCap
	}
	return n
}

// CrossedMilestone は前回表示時のスタンプ数previousから現在currentへの
// 変化がマイルストーン（5, 10）をまたいだかを返す。
// 条件は previous < m <= current。値が変化しないポーリングでは成立しない。
func CrossedMilestone(previous, current int) bool {
	for _, m := range milestones {
		if previous < m && m <= current {
			return true
		}
	}
	return false
}

// Recorder は台帳の変異を計測するインターフェース。
type Recorder interface {
	RecordGrant(reason string)
	RecordReset()
}

// Service はスタンプ台帳のサービス層。
type Service struct {
	userRepo repository.UserRepository
	recorder Recorder
}

// NewService はServiceを生成する。recorderはnilを許容する。
func NewService(userRepo repository.UserRepository, recorder Recorder) *Service {
	return &Service{
		userRepo: userRepo,
		recorder: recorder,
	}
}

// GetOrCreate は指定IDのユーザーを返す。存在しない場合はstamps=0で作成する。
// 同一IDの同時呼び出しでも重複行は作られない（主キー制約で解決）。
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewBadRequestError("userId")
	}

	user, err := s.userRepo.CreateIfAbsent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	user.Stamps = Clamp(user.Stamps)
	return user, nil
}

// Grant はスタンプを1つ付与し、更新後のスタンプ数を返す。
// 上限（model.StampCap）で頭打ちになるが、上限到達時も参加の記録として
// ADDイベントは追記される。
func (s *Service) Grant(ctx context.Context, userID, reason string) (int, error) {
	if userID == "" {
		return 0, model.NewBadRequestError("userId")
	}

	newStamps, err := s.userRepo.ApplyGrant(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to grant stamp: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordGrant(reason)
	}

	slog.Info("stamp granted",
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.Int("stamps", newStamps),
	)

	return Clamp(newStamps), nil
}

// Reset はスタンプ数を無条件に0へ戻し、RESETイベントを追記する。
// 既に0の場合もイベントは追記される。
func (s *Service) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewBadRequestError("userId")
	}

	if err := s.userRepo.ApplyReset(ctx, userID, model.ReasonUserReset); err != nil {
		return fmt.Errorf("failed to reset stamps: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordReset()
	}

	slog.Info("stamps reset", slog.String("user_id", userID))
	return nil
}
