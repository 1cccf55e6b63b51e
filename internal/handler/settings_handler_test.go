package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/settings"
)

// mockSettingsService はSettingsServiceInterfaceのモック実装。
type mockSettingsService struct {
	getFn    func(ctx context.Context, userID string) (*model.Settings, error)
	updateFn func(ctx context.Context, userID string, u settings.Update) (*model.Settings, error)
}

func (m *mockSettingsService) Get(ctx context.Context, userID string) (*model.Settings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return model.DefaultSettings(userID), nil
}

func (m *mockSettingsService) Update(ctx context.Context, userID string, u settings.Update) (*model.Settings, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, u)
	}
	return model.DefaultSettings(userID), nil
}

func TestSettingsHandler_GetSettings_Defaults(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/settings", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["units"] != "ml" || body["language"] != "ja" || body["frequency"] != "medium" {
		t.Errorf("body = %v", body)
	}
	if body["reminderCount"] != float64(8) || body["snoozeMinutes"] != float64(15) {
		t.Errorf("reminderCount/snoozeMinutes = %v/%v", body["reminderCount"], body["snoozeMinutes"])
	}
	if body["fixedIntervalMin"] != nil {
		t.Errorf("fixedIntervalMin = %v, want null", body["fixedIntervalMin"])
	}
	presets, ok := body["displayPresets"].([]any)
	if !ok || len(presets) != 4 || presets[0] != "100ml" || presets[3] != "500ml" {
		t.Errorf("displayPresets = %v", body["displayPresets"])
	}
	if _, ok := body["updatedAt"]; ok {
		t.Error("updatedAt should be omitted for unsaved defaults")
	}
}

func TestSettingsHandler_UpdateSettings_PartialUpdate(t *testing.T) {
	var got settings.Update
	svc := &mockSettingsService{
		updateFn: func(ctx context.Context, userID string, u settings.Update) (*model.Settings, error) {
			got = u
			st := model.DefaultSettings(userID)
			st.ReminderCount = *u.ReminderCount
			st.FixedIntervalMin = u.FixedIntervalMin
			return st, nil
		},
	}
	h := NewSettingsHandler(svc)

	req := jsonRequest(http.MethodPut, "/api/settings", `{"reminderCount":10,"fixedIntervalMin":45}`)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()
	h.UpdateSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if got.ReminderCount == nil || *got.ReminderCount != 10 {
		t.Errorf("ReminderCount = %v, want 10", got.ReminderCount)
	}
	if got.FixedIntervalMin == nil || *got.FixedIntervalMin != 45 {
		t.Errorf("FixedIntervalMin = %v, want 45", got.FixedIntervalMin)
	}
	if got.Units != nil || got.Frequency != nil || got.WebhookURL != nil || got.PresetMl != nil {
		t.Errorf("omitted fields should stay nil: %+v", got)
	}
	if got.ClearFixedInterval {
		t.Error("ClearFixedInterval should be false")
	}
	body := decodeBody(t, w)
	if body["fixedIntervalMin"] != float64(45) {
		t.Errorf("fixedIntervalMin = %v", body["fixedIntervalMin"])
	}
}

func TestSettingsHandler_UpdateSettings_ClearFixedInterval(t *testing.T) {
	var got settings.Update
	svc := &mockSettingsService{
		updateFn: func(ctx context.Context, userID string, u settings.Update) (*model.Settings, error) {
			got = u
			return model.DefaultSettings(userID), nil
		},
	}
	h := NewSettingsHandler(svc)

	req := withUserID(jsonRequest(http.MethodPut, "/api/settings", `{"clearFixedInterval":true,"webhookUrl":""}`), "user-1")
	w := httptest.NewRecorder()
	h.UpdateSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !got.ClearFixedInterval {
		t.Error("ClearFixedInterval = false, want true")
	}
	if got.WebhookURL == nil || *got.WebhookURL != "" {
		t.Errorf("WebhookURL = %v, want pointer to empty string", got.WebhookURL)
	}
}

func TestSettingsHandler_UpdateSettings_InvalidWebhook(t *testing.T) {
	svc := &mockSettingsService{
		updateFn: func(ctx context.Context, userID string, u settings.Update) (*model.Settings, error) {
			return nil, model.NewInvalidWebhookURLError("private address")
		},
	}
	h := NewSettingsHandler(svc)

	req := withUserID(jsonRequest(http.MethodPut, "/api/settings", `{"webhookUrl":"http://127.0.0.1/hook"}`), "user-1")
	w := httptest.NewRecorder()
	h.UpdateSettings(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidWebhookURL)
}

func TestSettingsHandler_UpdateSettings_TypeMismatch(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})

	req := withUserID(jsonRequest(http.MethodPut, "/api/settings", `{"reminderCount":"many"}`), "user-1")
	w := httptest.NewRecorder()
	h.UpdateSettings(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
}
