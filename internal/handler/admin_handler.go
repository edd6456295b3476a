package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
)

// adminTokenHeader は管理トークンを渡すHTTPヘッダー名。
const adminTokenHeader = "X-Admin-Token"

// AdminGatewayInterface は管理ハンドラーが必要とする認可ゲートウェイ。
type AdminGatewayInterface interface {
	// AuthorizeAndGrant はトークンを検証し、対象ユーザーにスタンプを付与する。
	AuthorizeAndGrant(ctx context.Context, suppliedToken, targetUserID string) (int, error)
}

// AdminHandler は管理者操作のHTTPハンドラー。
type AdminHandler struct {
	gateway AdminGatewayInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(gateway AdminGatewayInterface) *AdminHandler {
	return &AdminHandler{
		gateway: gateway,
	}
}

// adminGrantRequest は管理者付与リクエストのボディ。
type adminGrantRequest struct {
	UserID string `json:"userId"`
}

// adminGrantResponse は管理者付与のレスポンス。
type adminGrantResponse struct {
	UserID string `json:"userId"`
	Stamps int    `json:"stamps"`
}

// Grant は指定ユーザーにスタンプを1つ付与する。
// トークン検証と対象ID検証はゲートウェイに委譲する。
// POST /admin/grant
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req adminGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewBadRequestError("body"))
		return
	}

	stamps, err := h.gateway.AuthorizeAndGrant(r.Context(), r.Header.Get(adminTokenHeader), req.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(adminGrantResponse{
		UserID: req.UserID,
		Stamps: stamps,
	})
}
