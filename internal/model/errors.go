// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, stamp, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeDuplicateSignup  = "DUPLICATE_SIGNUP"
	ErrCodeUsernameMismatch = "USERNAME_MISMATCH"
	ErrCodeMailImmutable    = "MAIL_IMMUTABLE"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUserNotFoundError はユーザー・identity未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewDuplicateSignupError は同一メールでの二重登録エラーを生成する。
func NewDuplicateSignupError(mailAddress string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSignup,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", mailAddress),
		Category: "auth",
		Action:   "登録済みのメールアドレスでログインしてください。",
	}
}

// NewUsernameMismatchError はユーザー名の照合失敗エラーを生成する。
func NewUsernameMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameMismatch,
		Message:  "ユーザー名が登録内容と一致しません。",
		Category: "auth",
		Action:   "登録時のユーザー名を確認してください。",
	}
}

// NewMailImmutableError はメールアドレス変更の試行エラーを生成する。
func NewMailImmutableError() *APIError {
	return &APIError{
		Code:     ErrCodeMailImmutable,
		Message:  "メールアドレスは登録後に変更できません。",
		Category: "validation",
		Action:   "メールアドレス以外の項目を編集してください。",
	}
}

// NewValidationError は必須項目の検証エラーを生成する。
func NewValidationError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("必須項目が入力されていません: %s", field),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は管理トークン不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理トークンを確認してください。",
	}
}

// NewBadRequestError は必須パラメータ欠落エラーを生成する。
func NewBadRequestError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  fmt.Sprintf("必須パラメータがありません: %s", param),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInternalError はハンドラー内のpanicなど予期しない失敗を生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStoreUnavailableError は永続化層の失敗エラーを生成する。
// 再試行はコアでは行わず、呼び出し側の責務とする。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアにアクセスできません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
