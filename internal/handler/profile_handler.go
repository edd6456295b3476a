package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/stampcard/internal/identity"
	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// UpdateProfile はusername、description、job、hobbiesを更新して返す。
	// メールアドレスは照合専用で、既存値と異なる場合は失敗する。
	UpdateProfile(ctx context.Context, userID string, update identity.ProfileUpdate) (*model.Profile, error)
}

// ProfileHandler はプロフィール編集のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Username    string `json:"username"`
	MailAddress string `json:"mailAddress"`
	Description string `json:"description"`
	Job         string `json:"job"`
	Hobbies     string `json:"hobbies"`
}

// UpdateProfile はログイン中ユーザーのプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewBadRequestError("body"))
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, identity.ProfileUpdate{
		Username:    req.Username,
		MailAddress: req.MailAddress,
		Description: req.Description,
		Job:         req.Job,
		Hobbies:     req.Hobbies,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}
