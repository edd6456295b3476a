package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。レートはreq/sec単位。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート
	GeneralBurst    int           // API全般のバーストサイズ
	MutationRate    rate.Limit    // スタンプ変異（付与・リセット）のレート
	MutationBurst   int           // スタンプ変異のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、スタンプ変異 30 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		MutationRate:    rate.Limit(30.0 / 60.0),
		MutationBurst:   30,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterEntry はユーザーごとのリミッターとアクセス時刻を保持する。
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool は1種類のレート制限について、ユーザーごとのリミッターを管理する。
type limiterPool struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
	}
}

// get はユーザーのリミッターを取得または作成し、アクセス時刻を更新する。
func (p *limiterPool) get(userID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[userID] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

// evictIdle は一定時間アクセスのないエントリを削除する。
func (p *limiterPool) evictIdle(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, entry := range p.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(p.entries, userID)
		}
	}
}

// size は現在管理されているエントリ数を返す。テスト用。
func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般とスタンプ変異の2種類の制限を提供する。
type RateLimiter struct {
	config   RateLimiterConfig
	general  *limiterPool
	mutation *limiterPool
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		general:  newLimiterPool(config.GeneralRate, config.GeneralBurst),
		mutation: newLimiterPool(config.MutationRate, config.MutationBurst),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある
// （セッション/callerミドルウェアの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general")
}

// MutationMiddleware はスタンプ変異専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) MutationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.mutation, "mutation")
}

func (rl *RateLimiter) middleware(pool *limiterPool, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !pool.get(userID).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", limitType),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "リクエストが多すぎます。しばらく待ってから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.general.evictIdle(rl.config.CleanupInterval * 2)
			rl.mutation.evictIdle(rl.config.CleanupInterval * 2)
		case <-rl.stopCh:
			return
		}
	}
}
