package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/stampcard/internal/model"
)

type mockSessionFinder struct {
	findFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findFn(ctx, id)
}

// 有効なセッションCookieでユーザーIDがコンテキストに注入されることを検証する。
func TestSessionMiddleware_ValidSession(t *testing.T) {
	finder := &mockSessionFinder{
		findFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "session-1" {
				t.Errorf("looked up session %q, want session-1", id)
			}
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}

	var gotUserID string
	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("user ID = %q, want user-1", gotUserID)
	}
}

// Cookie無し・無効セッションは401になることを検証する。
func TestSessionMiddleware_Unauthorized(t *testing.T) {
	finder := &mockSessionFinder{
		findFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil // 期限切れまたは存在しない
		},
	}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	// Cookie無し
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without cookie = %d, want 401", rec.Code)
	}

	// 無効セッション
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with invalid session = %d, want 401", rec.Code)
	}
}
