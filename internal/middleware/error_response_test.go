package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/hydrate/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestStatusForAPIError(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError("weightKg", "must be positive"), http.StatusBadRequest},
		{model.NewInvalidWebhookURLError("private address"), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewProfileNotFoundError(), http.StatusNotFound},
		{model.NewIntakeNotFoundError("log-1"), http.StatusNotFound},
		{model.NewDeviceNotFoundError(), http.StatusNotFound},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewGoalNotOverriddenError(), http.StatusConflict},
		{model.NewRateLimitError(), http.StatusTooManyRequests},
		{&model.APIError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := StatusForAPIError(tt.err); got != tt.want {
				t.Errorf("StatusForAPIError(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

// プロフィール未登録はアプリが初期設定画面へ誘導するためのエラー
func TestWriteAPIError_ProfileNotFound(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAPIError(w, model.NewProfileNotFoundError())

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeProfileNotFound || body.Category != "hydration" {
		t.Errorf("body = %+v", body)
	}
	if body.Action == "" {
		t.Error("action should tell the user to register a profile")
	}
}

// 明示したステータスはコードからの対応より優先する
func TestWriteErrorResponse_ExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusUnprocessableEntity, &model.APIError{
		Code:     "VALIDATION_PLAN_CONTEXT",
		Message:  "リマインダーを計画できない設定です。",
		Category: "validation",
		Action:   "起床・就寝時刻と通知回数を確認してください。",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := decodeErrorBody(t, w)
	if body.Code != "VALIDATION_PLAN_CONTEXT" || body.Message != "リマインダーを計画できない設定です。" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()

	WriteUnauthorized(w)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeUnauthorized || body.Category != "auth" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

// アプリが参照する4項目はすべてJSONに含まれる
func TestErrorResponseBody_FieldNames(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAPIError(w, model.NewRateLimitError())

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, field := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field: %s", field)
		}
	}
}
