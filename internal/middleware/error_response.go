package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stampcard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// StatusForErrorCode はドメインのエラーコードをHTTPステータスに対応付ける。
func StatusForErrorCode(code string) int {
	switch code {
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSignup, model.ErrCodeMailImmutable:
		return http.StatusConflict
	case model.ErrCodeUsernameMismatch, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeValidation, model.ErrCodeBadRequest:
		return http.StatusBadRequest
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError はエラーを種別に応じたHTTPレスポンスに変換して書き込む。
// ドメインのAPIErrorはコード対応のステータスで返し、それ以外
// （永続化層の失敗など）はログに記録してSTORE_UNAVAILABLEとして返す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForErrorCode(apiErr.Code), apiErr)
		return
	}

	slog.Error("request failed", slog.String("error", err.Error()))
	WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
}
