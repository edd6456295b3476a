package status

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/repository"
)

// --- モック ---

type mockStatusRepo struct {
	snapshotFn func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error)
	calls      int
}

func (m *mockStatusRepo) Snapshot(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
	m.calls++
	return m.snapshotFn(ctx, userID, eventLimit)
}

// --- テスト ---

// Projectが台帳・履歴・プロフィールを合成して返すことを検証する。
func TestService_Project_ComposesLedgerAndProfile(t *testing.T) {
	now := time.Now()
	events := []*model.StampEvent{
		{ID: 3, UserID: "user-1", CreatedAt: now, Reason: "attendance", EventType: model.EventTypeAdd},
		{ID: 2, UserID: "user-1", CreatedAt: now.Add(-time.Hour), Reason: "attendance", EventType: model.EventTypeAdd},
	}

	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		if eventLimit != 3 {
			t.Errorf("eventLimit = %d, want 3", eventLimit)
		}
		return &repository.StatusSnapshot{
			User:    &model.User{ID: userID, Stamps: 5, IsAdmin: true},
			Events:  events,
			Profile: &model.Profile{UserID: userID, Username: "法然", MailAddress: "a@b.com"},
		}, nil
	}}
	svc := NewService(repo)

	st, err := svc.Project(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if st.Stamps != 5 {
		t.Errorf("Stamps = %d, want 5", st.Stamps)
	}
	if !st.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
	if len(st.RecentEvents) != 2 {
		t.Errorf("RecentEvents = %d, want 2", len(st.RecentEvents))
	}
	if st.LastUpdatedAt == nil || !st.LastUpdatedAt.Equal(now) {
		t.Errorf("LastUpdatedAt = %v, want %v", st.LastUpdatedAt, now)
	}
	if st.Profile == nil || st.Profile.Username != "法然" {
		t.Errorf("Profile = %+v, want username 法然", st.Profile)
	}
}

// 未作成ユーザーの投影はゼロ値ビューを返し、行を作成しないことを検証する。
func TestService_Project_UnknownUserReturnsZeroView(t *testing.T) {
	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		return &repository.StatusSnapshot{}, nil
	}}
	svc := NewService(repo)

	st, err := svc.Project(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if st.Stamps != 0 || st.IsAdmin {
		t.Errorf("expected zero view, got %+v", st)
	}
	if st.LastUpdatedAt != nil {
		t.Errorf("LastUpdatedAt = %v, want nil", st.LastUpdatedAt)
	}
	if st.Profile != nil {
		t.Errorf("Profile = %+v, want nil", st.Profile)
	}
}

// 保存値が範囲外でも投影はクランプ済みの値を返すことを検証する。
func TestService_Project_ClampsStoredValue(t *testing.T) {
	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		return &repository.StatusSnapshot{User: &model.User{ID: userID, Stamps: 99}}, nil
	}}
	svc := NewService(repo)

	st, err := svc.Project(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if st.Stamps != model.StampCap {
		t.Errorf("Stamps = %d, want %d", st.Stamps, model.StampCap)
	}
}

// Projectはストアを1回のスナップショット読み取りでしか呼ばないことを検証する。
// 読み取りが複数回に分かれると、並行する付与のコミットを挟んで
// 古いスタンプ数と新しいイベントが混在した応答になりうる。
func TestService_Project_SingleSnapshotRead(t *testing.T) {
	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		return &repository.StatusSnapshot{}, nil
	}}
	svc := NewService(repo)

	if _, err := svc.Project(context.Background(), "user-1"); err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("snapshot reads = %d, want 1", repo.calls)
	}
}

// 投影の合間に付与がコミットされても、各応答は単一時点の内容で
// 内部整合していることを検証する。LastUpdatedAtは常にRecentEvents
// 先頭のcreated_atと一致し、追加のクエリから取得した新しい時刻が
// 混ざることはない。
func TestService_Project_ConcurrentGrantDoesNotTearResponse(t *testing.T) {
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	// スナップショット取得のたびに付与が1件コミットされた状態を再現する
	version := 0
	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		version++
		var events []*model.StampEvent
		for i := version; i > 0 && len(events) < eventLimit; i-- {
			events = append(events, &model.StampEvent{
				ID:        int64(i),
				UserID:    userID,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
				Reason:    "attendance",
				EventType: model.EventTypeAdd,
			})
		}
		return &repository.StatusSnapshot{
			User:   &model.User{ID: userID, Stamps: version},
			Events: events,
		}, nil
	}}
	svc := NewService(repo)

	for i := 0; i < 5; i++ {
		st, err := svc.Project(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Project returned error: %v", err)
		}

		// スタンプ数と見えている最新イベントIDは同一時点の値
		newestID := st.RecentEvents[0].ID
		if int(newestID) != st.Stamps {
			t.Errorf("stamps = %d but newest visible event id = %d", st.Stamps, newestID)
		}

		// 最終更新時刻が最新イベントより新しくなることはない
		if !st.LastUpdatedAt.Equal(st.RecentEvents[0].CreatedAt) {
			t.Errorf("LastUpdatedAt = %v, want %v (newest recent event)",
				st.LastUpdatedAt, st.RecentEvents[0].CreatedAt)
		}
	}
}

// 空IDの投影はBAD_REQUESTで失敗することを検証する。
func TestService_Project_EmptyUserID_Rejected(t *testing.T) {
	repo := &mockStatusRepo{snapshotFn: func(ctx context.Context, userID string, eventLimit int) (*repository.StatusSnapshot, error) {
		return &repository.StatusSnapshot{}, nil
	}}
	svc := NewService(repo)

	if _, err := svc.Project(context.Background(), ""); err == nil {
		t.Error("Project with empty ID should fail")
	}
	if repo.calls != 0 {
		t.Errorf("snapshot reads = %d, want 0", repo.calls)
	}
}
