package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/status"
)

// newTestRouterDeps はテスト用のRouterDepsを組み立てる。
// クリーンアップでレートリミッターを停止する。
func newTestRouterDeps(t *testing.T, finder middleware.SessionFinder) *RouterDeps {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	guest := middleware.NewGuestCookieResolver(middleware.GuestCookieConfig{
		Secret: "test-secret",
		MaxAge: 86400,
	})

	return &RouterDeps{
		SessionFinder: finder,
		CallerResolvers: []middleware.CallerResolver{
			middleware.NewSessionCallerResolver(finder),
			guest,
		},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		AuthService:       &mockAuthService{},
		IdentityService:   &mockIdentityService{},
		AuthConfig:        testAuthConfig(),
		LedgerService:     &mockLedgerService{},
		StatusProjector:   &mockStatusProjector{},
		ProfileService:    &mockProfileService{},
		AdminGateway:      &mockAdminGateway{},
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, &mockSessionFinder{}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_StatusWithoutLoginIssuesGuestCookie(t *testing.T) {
	deps := newTestRouterDeps(t, &mockSessionFinder{})
	deps.StatusProjector = &mockStatusProjector{
		projectFn: func(ctx context.Context, userID string) (*status.Status, error) {
			return &status.Status{Stamps: 0}, nil
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/status status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if findCookie(resp, "guest_id") == nil {
		t.Error("expected guest cookie for anonymous caller")
	}
}

func TestRouter_StatusWithSessionUsesSessionUser(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "session-1" {
				return nil, nil
			}
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	deps := newTestRouterDeps(t, finder)

	var projectedUser string
	deps.StatusProjector = &mockStatusProjector{
		projectFn: func(ctx context.Context, userID string) (*status.Status, error) {
			projectedUser = userID
			return &status.Status{Stamps: 3}, nil
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if projectedUser != "user-1" {
		t.Errorf("projected user = %q, want user-1", projectedUser)
	}
}

func TestRouter_GoogleRoutesNotMountedWithoutOAuthConfig(t *testing.T) {
	deps := newTestRouterDeps(t, &mockSessionFinder{})
	deps.OAuthEnabled = false
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestRouter_GoogleRoutesMountedWithOAuthConfig(t *testing.T) {
	deps := newTestRouterDeps(t, &mockSessionFinder{})
	deps.OAuthEnabled = true
	deps.AuthService = &mockAuthService{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
}

func TestRouter_ProfileRequiresLoginSession(t *testing.T) {
	// ゲストCookieではプロフィール編集に到達できない
	router := NewRouter(newTestRouterDeps(t, &mockSessionFinder{}))

	req := httptest.NewRequest(http.MethodPut, "/api/profile", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_AdminGrantReachableWithoutSession(t *testing.T) {
	deps := newTestRouterDeps(t, &mockSessionFinder{})
	deps.AdminGateway = &mockAdminGateway{
		authorizeAndGrantFn: func(ctx context.Context, suppliedToken, targetUserID string) (int, error) {
			return 1, nil
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/admin/grant", strings.NewReader(`{"userId":"user-9"}`))
	req.Header.Set(adminTokenHeader, "secret-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}
