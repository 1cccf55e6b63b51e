package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizer は摂取記録のメモなど、利用者が入力する短いプレーンテキストを整える。
type NoteSanitizer interface {
	// Sanitize はHTMLタグを除去し、制御文字を取り除いて前後の空白を詰めたテキストを返す。
	// script, styleタグは中身ごと除去される。
	Sanitize(raw string) string
}

type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はbluemondayのStrictPolicyでNoteSanitizerを生成する。
func NewNoteSanitizer() *noteSanitizer {
	return &noteSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はプレーンテキストに変換したメモを返す。
// StrictPolicyがエスケープした文字実体参照は元の文字に戻す。
func (s *noteSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}
