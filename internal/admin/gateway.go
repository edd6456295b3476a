// Package admin は管理者による第三者へのスタンプ付与の認可ゲートウェイを提供する。
//
// 他人のユーザーに対する変異はこのゲートウェイだけが行える。
// それ以外の変異パスはすべて呼び出し元自身のユーザーに限定される。
package admin

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/hitoshi/stampcard/internal/model"
)

// Granter はスタンプ付与の委譲先インターフェース。
// ledger.Serviceの部分集合として定義する。
type Granter interface {
	Grant(ctx context.Context, userID, reason string) (int, error)
}

// Gateway は管理トークンの検証と付与の委譲を行う。
type Gateway struct {
	token   string
	granter Granter
}

// NewGateway はGatewayを生成する。tokenは環境から供給される管理シークレット。
func NewGateway(token string, granter Granter) *Gateway {
	return &Gateway{
		token:   token,
		granter: granter,
	}
}

// AuthorizeAndGrant はトークンを検証し、対象ユーザーにスタンプを1つ付与して
// 更新後のスタンプ数を返す。トークン比較は一定時間比較で行う。
// トークン不一致はUNAUTHORIZED、対象ID未指定はBAD_REQUESTで失敗し、
// いずれの場合も台帳への変異は発生しない。
func (g *Gateway) AuthorizeAndGrant(ctx context.Context, suppliedToken, targetUserID string) (int, error) {
	if subtle.ConstantTimeCompare([]byte(suppliedToken), []byte(g.token)) != 1 {
		slog.Warn("admin grant rejected: bad token",
			slog.String("target_user_id", targetUserID),
		)
		return 0, model.NewUnauthorizedError()
	}

	if targetUserID == "" {
		return 0, model.NewBadRequestError("userId")
	}

	newStamps, err := g.granter.Grant(ctx, targetUserID, model.ReasonAdminGrant)
	if err != nil {
		return 0, fmt.Errorf("failed to apply admin grant: %w", err)
	}

	slog.Info("admin grant applied",
		slog.String("target_user_id", targetUserID),
		slog.Int("stamps", newStamps),
	)

	return newStamps, nil
}
