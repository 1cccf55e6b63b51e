package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrapped profile not found", fmt.Errorf("snapshot: %w", model.NewProfileNotFoundError()), http.StatusNotFound, model.ErrCodeProfileNotFound},
		{"goal not overridden", model.NewGoalNotOverriddenError(), http.StatusConflict, model.ErrCodeGoalNotOverridden},
		{"invalid webhook", model.NewInvalidWebhookURLError("private address"), http.StatusBadRequest, model.ErrCodeInvalidWebhookURL},
		{"plan precondition", fmt.Errorf("plan: %w", hydration.ErrInvalidPlanContext), http.StatusUnprocessableEntity, "VALIDATION_PLAN_CONTEXT"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err)
			assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		AmountMl int `json:"amountMl"`
	}

	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"valid", `{"amountMl":200}`, true},
		{"empty body", "", true},
		{"malformed", `{"amountMl":`, false},
		{"unknown field", `{"amountMl":200,"extra":1}`, false},
		{"too large", `{"amountMl":200,"pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v payload
			w := httptest.NewRecorder()
			ok := decodeJSON(w, jsonRequest(http.MethodPost, "/", tt.body), &v)

			if ok != tt.wantOK {
				t.Fatalf("decodeJSON() = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
			}
		})
	}
}
