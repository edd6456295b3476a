// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はユーザーが入力するプロフィール自由テキスト
// （自己紹介、職業、趣味）からHTMLを除去し、表示時のXSSを防ぐ。
// bluemondayのStrictPolicyによりタグは一切許可されない。
package security

import "github.com/microcosm-cc/bluemonday"

// ProfileSanitizerService はプロフィール自由テキストのサニタイズ機能の
// インターフェースを定義する。保存前に適用する。
type ProfileSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// プロフィールはプレーンテキストのみを想定するため、StrictPolicy
// （全タグ除去）を使用する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したテキストを返す。
func (s *profileSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
