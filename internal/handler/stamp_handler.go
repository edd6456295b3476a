package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/stampcard/internal/ledger"
	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/status"
)

// LedgerServiceInterface はスタンプハンドラーが必要とする台帳サービス。
type LedgerServiceInterface interface {
	// Grant はスタンプを1つ付与し、更新後のスタンプ数を返す。
	Grant(ctx context.Context, userID, reason string) (int, error)
	// Reset はスタンプ数を0に戻す。
	Reset(ctx context.Context, userID string) error
}

// StatusProjector はステータス投影のインターフェース。
type StatusProjector interface {
	Project(ctx context.Context, userID string) (*status.Status, error)
}

// StampHandler はスタンプ台帳のHTTPハンドラー。
type StampHandler struct {
	ledger    LedgerServiceInterface
	projector StatusProjector
}

// NewStampHandler はStampHandlerを生成する。
func NewStampHandler(ledgerSvc LedgerServiceInterface, projector StatusProjector) *StampHandler {
	return &StampHandler{
		ledger:    ledgerSvc,
		projector: projector,
	}
}

// stampEventResponse はイベント履歴のAPIレスポンス。
type stampEventResponse struct {
	EventType string    `json:"eventType"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	Username    string    `json:"username"`
	MailAddress string    `json:"mailAddress"`
	Description string    `json:"description"`
	Job         string    `json:"job"`
	Hobbies     string    `json:"hobbies"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// statusResponse はステータス投影のAPIレスポンス。
type statusResponse struct {
	Stamps           int                  `json:"stamps"`
	IsAdmin          bool                 `json:"isAdmin"`
	LastUpdatedAt    *time.Time           `json:"lastUpdatedAt"`
	RecentEvents     []stampEventResponse `json:"recentEvents"`
	Profile          *profileResponse     `json:"profile"`
	MilestoneCrossed bool                 `json:"milestoneCrossed"`
}

// grantResponse はスタンプ付与のAPIレスポンス。
type grantResponse struct {
	Stamps           int  `json:"stamps"`
	MilestoneCrossed bool `json:"milestoneCrossed"`
}

// GetStatus は現在のステータス投影を返す。
// クエリパラメータ previous（前回表示時のスタンプ数）が指定された場合、
// マイルストーン（5, 10）をまたいだかをmilestoneCrossedで返す。
// GET /api/status?previous=N
func (h *StampHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	st, err := h.projector.Project(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := toStatusResponse(st)

	if raw := r.URL.Query().Get("previous"); raw != "" {
		previous, convErr := strconv.Atoi(raw)
		if convErr != nil {
			middleware.WriteError(w, model.NewBadRequestError("previous"))
			return
		}
		resp.MilestoneCrossed = ledger.CrossedMilestone(previous, st.Stamps)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AddStamp は呼び出し元自身に出席スタンプを1つ付与する。
// POST /api/stamps
func (h *StampHandler) AddStamp(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	stamps, err := h.ledger.Grant(r.Context(), userID, model.ReasonAttendance)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grantResponse{
		Stamps:           stamps,
		MilestoneCrossed: ledger.CrossedMilestone(stamps-1, stamps),
	})
}

// ResetStamps は呼び出し元自身のスタンプ数を0に戻す。
// POST /api/stamps/reset
func (h *StampHandler) ResetStamps(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	if err := h.ledger.Reset(r.Context(), userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grantResponse{Stamps: 0})
}

// --- ヘルパー関数 ---

// toStatusResponse はstatus.StatusからAPIレスポンスに変換する。
func toStatusResponse(st *status.Status) statusResponse {
	events := make([]stampEventResponse, len(st.RecentEvents))
	for i, ev := range st.RecentEvents {
		events[i] = stampEventResponse{
			EventType: string(ev.EventType),
			Reason:    ev.Reason,
			CreatedAt: ev.CreatedAt,
		}
	}

	resp := statusResponse{
		Stamps:        st.Stamps,
		IsAdmin:       st.IsAdmin,
		LastUpdatedAt: st.LastUpdatedAt,
		RecentEvents:  events,
	}
	if st.Profile != nil {
		resp.Profile = toProfileResponse(st.Profile)
	}
	return resp
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(p *model.Profile) *profileResponse {
	return &profileResponse{
		Username:    p.Username,
		MailAddress: p.MailAddress,
		Description: p.Description,
		Job:         p.Job,
		Hobbies:     p.Hobbies,
		UpdatedAt:   p.UpdatedAt,
	}
}
