package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// guestCookieName はログイン前の仮identityを保持するCookieの名前。
const guestCookieName = "guest_id"

// CallerResolver は「現在の呼び出し元」のユーザーIDを解決する戦略。
// セッション由来（ログイン後）とCookie由来（ログイン前）の2戦略を
// 同一の抽象の背後に置き、コアには解決済みIDだけを渡す。
type CallerResolver interface {
	// ResolveCaller はリクエストからユーザーIDを解決する。
	// 解決できない場合は ("", false) を返す。
	ResolveCaller(w http.ResponseWriter, r *http.Request) (string, bool)
}

// SessionCallerResolver はログインセッションから呼び出し元を解決する。
type SessionCallerResolver struct {
	finder SessionFinder
}

// NewSessionCallerResolver はSessionCallerResolverを生成する。
func NewSessionCallerResolver(finder SessionFinder) *SessionCallerResolver {
	return &SessionCallerResolver{finder: finder}
}

// ResolveCaller はセッションCookieからユーザーIDを解決する。
func (s *SessionCallerResolver) ResolveCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	return resolveSessionUser(s.finder, r)
}

// GuestCookieConfig はゲストCookie戦略の設定。
type GuestCookieConfig struct {
	Secret       string // HMAC署名鍵（セッションシークレットを流用）
	CookieSecure bool
	CookieDomain string
	MaxAge       int
}

// GuestCookieResolver はログイン前の呼び出し元に安定した仮IDを与える。
// Cookie値は "id.signature" 形式で、HMAC-SHA256により改竄を検出する。
// Cookieが無い・署名が不正な場合は新しいIDを採番してCookieを再設定する。
type GuestCookieResolver struct {
	config GuestCookieConfig
}

// NewGuestCookieResolver はGuestCookieResolverを生成する。
func NewGuestCookieResolver(config GuestCookieConfig) *GuestCookieResolver {
	return &GuestCookieResolver{config: config}
}

// ResolveCaller はゲストCookieからユーザーIDを解決する。常に成功する。
func (g *GuestCookieResolver) ResolveCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(guestCookieName)
	if err == nil && cookie.Value != "" {
		if id, ok := g.verify(cookie.Value); ok {
			return id, true
		}
		slog.Warn("guest cookie signature mismatch, reissuing")
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     guestCookieName,
		Value:    g.sign(id),
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   g.config.MaxAge,
		HttpOnly: true,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true
}

// sign はIDにHMAC-SHA256署名を付けたCookie値を返す。
func (g *GuestCookieResolver) sign(id string) string {
	mac := hmac.New(sha256.New, []byte(g.config.Secret))
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify はCookie値の署名を検証し、IDを取り出す。
func (g *GuestCookieResolver) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(g.config.Secret))
	mac.Write([]byte(id))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return id, true
}

// NewCallerMiddleware は複数の解決戦略を順に試し、最初に解決した
// ユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// どの戦略でも解決できない場合は401を返す。
func NewCallerMiddleware(resolvers ...CallerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, resolver := range resolvers {
				if userID, ok := resolver.ResolveCaller(w, r); ok {
					ctx := context.WithValue(r.Context(), userIDContextKey, userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
