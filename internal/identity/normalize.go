package identity

import "strings"

// NormalizeMail はメールアドレスを正規化する（trim + 小文字化）。
// localプロバイダーのprovider_keyと照合キーは常にこの形式を使う。
func NormalizeMail(mail string) string {
	return strings.ToLower(strings.TrimSpace(mail))
}

// NormalizeUsername はユーザー名を正規化する（trimのみ、大文字小文字は保持）。
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}
