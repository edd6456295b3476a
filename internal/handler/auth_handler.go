// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stampcard/internal/identity"
	"github.com/hitoshi/stampcard/internal/middleware"
	"github.com/hitoshi/stampcard/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするセッション管理サービス。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	IssueSession(ctx context.Context, userID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// IdentityServiceInterface は認証ハンドラーが必要とするidentityサービス。
type IdentityServiceInterface interface {
	SignupLocal(ctx context.Context, username, mailAddress string, fields identity.ProfileFields) (string, error)
	LoginLocal(ctx context.Context, username, mailAddress string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
// ローカル（メール+ユーザー名）とGoogle OAuthの両方のログインを扱う。
type AuthHandler struct {
	service   AuthServiceInterface
	identity  IdentityServiceInterface
	sessions  middleware.SessionFinder
	projector StatusProjector
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	identitySvc IdentityServiceInterface,
	sessions middleware.SessionFinder,
	projector StatusProjector,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		service:   service,
		identity:  identitySvc,
		sessions:  sessions,
		projector: projector,
		config:    config,
	}
}

// signupRequest はローカル登録リクエストのボディ。
type signupRequest struct {
	Username    string `json:"username"`
	MailAddress string `json:"mailAddress"`
	Description string `json:"description"`
	Job         string `json:"job"`
	Hobbies     string `json:"hobbies"`
}

// loginRequest はローカルログインリクエストのボディ。
type loginRequest struct {
	Username    string `json:"username"`
	MailAddress string `json:"mailAddress"`
}

// sessionResponse はログイン成功時のレスポンス。
type sessionResponse struct {
	UserID string `json:"userId"`
}

// meResponse は現在のログインユーザー情報のレスポンス。
type meResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	MailAddress string `json:"mailAddress"`
	IsAdmin     bool   `json:"isAdmin"`
}

// Signup はローカル登録を処理し、セッションを発行する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewBadRequestError("body"))
		return
	}

	userID, err := h.identity.SignupLocal(r.Context(), req.Username, req.MailAddress, identity.ProfileFields{
		Description: req.Description,
		Job:         req.Job,
		Hobbies:     req.Hobbies,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	session, err := h.service.IssueSession(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sessionResponse{UserID: userID})
}

// Login はローカルログインを処理し、セッションを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewBadRequestError("body"))
		return
	}

	userID, err := h.identity.LoginLocal(r.Context(), req.Username, req.MailAddress)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	session, err := h.service.IssueSession(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{UserID: userID})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		// ログアウト失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	session, err := h.sessions.FindByID(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if session == nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	st, err := h.projector.Project(r.Context(), session.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := meResponse{UserID: session.UserID, IsAdmin: st.IsAdmin}
	if st.Profile != nil {
		resp.Username = st.Profile.Username
		resp.MailAddress = st.Profile.MailAddress
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, session.ID)

	// 4. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieをクリアする。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
