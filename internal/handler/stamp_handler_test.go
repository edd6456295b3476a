package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/status"
)

// --- モック定義 ---

type mockLedgerService struct {
	grantFn func(ctx context.Context, userID, reason string) (int, error)
	resetFn func(ctx context.Context, userID string) error
}

func (m *mockLedgerService) Grant(ctx context.Context, userID, reason string) (int, error) {
	if m.grantFn != nil {
		return m.grantFn(ctx, userID, reason)
	}
	return 0, nil
}

func (m *mockLedgerService) Reset(ctx context.Context, userID string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, userID)
	}
	return nil
}

// requestWithUser はユーザーIDをコンテキストに注入したリクエストを作る。
func requestWithUser(method, target, userID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// --- テスト ---

func TestStampHandler_GetStatus_ReturnsProjection(t *testing.T) {
	last := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	projector := &mockStatusProjector{
		projectFn: func(ctx context.Context, userID string) (*status.Status, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return &status.Status{
				Stamps:        7,
				LastUpdatedAt: &last,
				RecentEvents: []*model.StampEvent{
					{EventType: model.EventTypeAdd, Reason: model.ReasonAttendance, CreatedAt: last},
				},
				Profile: &model.Profile{Username: "法然", MailAddress: "honen@example.com"},
			}, nil
		},
	}
	h := NewStampHandler(&mockLedgerService{}, projector)

	w := httptest.NewRecorder()
	h.GetStatus(w, requestWithUser(http.MethodGet, "/api/status", "user-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Stamps != 7 {
		t.Errorf("stamps = %d, want 7", got.Stamps)
	}
	if len(got.RecentEvents) != 1 {
		t.Fatalf("recentEvents length = %d, want 1", len(got.RecentEvents))
	}
	if got.RecentEvents[0].EventType != "ADD" {
		t.Errorf("eventType = %q, want ADD", got.RecentEvents[0].EventType)
	}
	if got.Profile == nil || got.Profile.Username != "法然" {
		t.Errorf("unexpected profile: %+v", got.Profile)
	}
	if got.MilestoneCrossed {
		t.Error("milestoneCrossed should be false without previous param")
	}
}

func TestStampHandler_GetStatus_PreviousParamDetectsMilestone(t *testing.T) {
	projector := &mockStatusProjector{
		projectFn: func(ctx context.Context, userID string) (*status.Status, error) {
			return &status.Status{Stamps: 5}, nil
		},
	}
	h := NewStampHandler(&mockLedgerService{}, projector)

	tests := []struct {
		previous string
		want     bool
	}{
		{"4", true},  // 4 -> 5 でマイルストーン5をまたぐ
		{"5", false}, // 変化なし
		{"0", true},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.GetStatus(w, requestWithUser(http.MethodGet, "/api/status?previous="+tt.previous, "user-1"))

		var got statusResponse
		if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if got.MilestoneCrossed != tt.want {
			t.Errorf("previous=%s: milestoneCrossed = %v, want %v", tt.previous, got.MilestoneCrossed, tt.want)
		}
	}
}

func TestStampHandler_GetStatus_InvalidPreviousReturns400(t *testing.T) {
	h := NewStampHandler(&mockLedgerService{}, &mockStatusProjector{})

	w := httptest.NewRecorder()
	h.GetStatus(w, requestWithUser(http.MethodGet, "/api/status?previous=abc", "user-1"))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestStampHandler_GetStatus_WithoutCallerReturns401(t *testing.T) {
	h := NewStampHandler(&mockLedgerService{}, &mockStatusProjector{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	h.GetStatus(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestStampHandler_AddStamp_GrantsAttendanceStamp(t *testing.T) {
	ledgerSvc := &mockLedgerService{
		grantFn: func(ctx context.Context, userID, reason string) (int, error) {
			if reason != model.ReasonAttendance {
				t.Errorf("reason = %q, want %q", reason, model.ReasonAttendance)
			}
			return 5, nil
		},
	}
	h := NewStampHandler(ledgerSvc, &mockStatusProjector{})

	w := httptest.NewRecorder()
	h.AddStamp(w, requestWithUser(http.MethodPost, "/api/stamps", "user-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Stamps != 5 {
		t.Errorf("stamps = %d, want 5", got.Stamps)
	}
	// 4 -> 5 はマイルストーン5をまたぐ
	if !got.MilestoneCrossed {
		t.Error("milestoneCrossed should be true at stamp 5")
	}
}

func TestStampHandler_AddStamp_NoMilestoneBetweenThresholds(t *testing.T) {
	ledgerSvc := &mockLedgerService{
		grantFn: func(ctx context.Context, userID, reason string) (int, error) {
			return 7, nil
		},
	}
	h := NewStampHandler(ledgerSvc, &mockStatusProjector{})

	w := httptest.NewRecorder()
	h.AddStamp(w, requestWithUser(http.MethodPost, "/api/stamps", "user-1"))

	var got grantResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.MilestoneCrossed {
		t.Error("milestoneCrossed should be false at stamp 7")
	}
}

func TestStampHandler_ResetStamps_ReturnsZero(t *testing.T) {
	resetCalled := false
	ledgerSvc := &mockLedgerService{
		resetFn: func(ctx context.Context, userID string) error {
			resetCalled = true
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return nil
		},
	}
	h := NewStampHandler(ledgerSvc, &mockStatusProjector{})

	w := httptest.NewRecorder()
	h.ResetStamps(w, requestWithUser(http.MethodPost, "/api/stamps/reset", "user-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !resetCalled {
		t.Error("Reset should be called")
	}

	var got grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Stamps != 0 {
		t.Errorf("stamps = %d, want 0", got.Stamps)
	}
}
