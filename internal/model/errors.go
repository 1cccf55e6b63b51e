// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, hydration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodeIntakeNotFound    = "INTAKE_NOT_FOUND"
	ErrCodeDeviceNotFound    = "DEVICE_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeInvalidWebhookURL = "INVALID_WEBHOOK_URL"
	ErrCodeGoalNotOverridden = "GOAL_NOT_OVERRIDDEN"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewProfileNotFoundError はプロフィール未登録エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが登録されていません。",
		Category: "hydration",
		Action:   "体重と起床・就寝時刻を登録してください。",
	}
}

// NewIntakeNotFoundError は摂取記録が見つからない場合のエラーを生成する。
func NewIntakeNotFoundError(intakeID string) *APIError {
	return &APIError{
		Code:     ErrCodeIntakeNotFound,
		Message:  fmt.Sprintf("指定された記録が見つかりません: %s", intakeID),
		Category: "hydration",
		Action:   "記録IDを確認してください。",
	}
}

// NewDeviceNotFoundError はデバイスが見つからない場合のエラーを生成する。
func NewDeviceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDeviceNotFound,
		Message:  "デバイスが登録されていません。",
		Category: "auth",
		Action:   "アプリを再起動してデバイスを登録し直してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "デバイスを登録し直してください。",
	}
}

// NewInvalidWebhookURLError はWebhook URLが不正な場合のエラーを生成する。
func NewInvalidWebhookURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebhookURL,
		Message:  fmt.Sprintf("Webhook URLが利用できません: %s", reason),
		Category: "validation",
		Action:   "外部から到達できる https:// のURLを指定してください。",
	}
}

// NewGoalNotOverriddenError は手動設定されていない目標の解除を試みた場合のエラーを生成する。
func NewGoalNotOverriddenError() *APIError {
	return &APIError{
		Code:     ErrCodeGoalNotOverridden,
		Message:  "今日の目標は手動設定されていません。",
		Category: "hydration",
		Action:   "手動設定した目標のみ解除できます。",
	}
}

// NewUnauthorizedError は認証トークンがない、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "アプリを再起動してデバイスを登録し直してください。",
	}
}

// NewRateLimitError はリクエスト過多のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
