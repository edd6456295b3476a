package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/stampcard/internal/model"
)

type mockAdminGateway struct {
	authorizeAndGrantFn func(ctx context.Context, suppliedToken, targetUserID string) (int, error)
}

func (m *mockAdminGateway) AuthorizeAndGrant(ctx context.Context, suppliedToken, targetUserID string) (int, error) {
	if m.authorizeAndGrantFn != nil {
		return m.authorizeAndGrantFn(ctx, suppliedToken, targetUserID)
	}
	return 0, nil
}

func TestAdminHandler_Grant_PassesHeaderTokenAndTarget(t *testing.T) {
	gateway := &mockAdminGateway{
		authorizeAndGrantFn: func(ctx context.Context, suppliedToken, targetUserID string) (int, error) {
			if suppliedToken != "secret-token" {
				t.Errorf("token = %q, want secret-token", suppliedToken)
			}
			if targetUserID != "user-7" {
				t.Errorf("target = %q, want user-7", targetUserID)
			}
			return 4, nil
		},
	}
	h := NewAdminHandler(gateway)

	req := httptest.NewRequest(http.MethodPost, "/admin/grant", strings.NewReader(`{"userId":"user-7"}`))
	req.Header.Set(adminTokenHeader, "secret-token")
	w := httptest.NewRecorder()

	h.Grant(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got adminGrantResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Stamps != 4 {
		t.Errorf("stamps = %d, want 4", got.Stamps)
	}
	if got.UserID != "user-7" {
		t.Errorf("userId = %q, want user-7", got.UserID)
	}
}

func TestAdminHandler_Grant_BadTokenReturns401(t *testing.T) {
	gateway := &mockAdminGateway{
		authorizeAndGrantFn: func(ctx context.Context, suppliedToken, targetUserID string) (int, error) {
			return 0, model.NewUnauthorizedError()
		},
	}
	h := NewAdminHandler(gateway)

	req := httptest.NewRequest(http.MethodPost, "/admin/grant", strings.NewReader(`{"userId":"user-7"}`))
	req.Header.Set(adminTokenHeader, "wrong")
	w := httptest.NewRecorder()

	h.Grant(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminHandler_Grant_InvalidBodyReturns400(t *testing.T) {
	h := NewAdminHandler(&mockAdminGateway{})

	req := httptest.NewRequest(http.MethodPost, "/admin/grant", strings.NewReader("{not json"))
	req.Header.Set(adminTokenHeader, "secret-token")
	w := httptest.NewRecorder()

	h.Grant(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
