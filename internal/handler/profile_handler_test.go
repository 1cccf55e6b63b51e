package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/profile"
)

// mockProfileService はProfileServiceInterfaceのモック実装。
type mockProfileService struct {
	getFn       func(ctx context.Context, userID string) (*model.UserProfile, error)
	upsertFn    func(ctx context.Context, userID string, input profile.Input) (*model.UserProfile, *model.DailyGoal, error)
	todayGoalFn func(ctx context.Context, userID string) (*profile.Day, error)
	setManualFn func(ctx context.Context, userID string, targetMl int) (*model.DailyGoal, error)
	clearFn     func(ctx context.Context, userID string) (*model.DailyGoal, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, model.NewProfileNotFoundError()
}

func (m *mockProfileService) Upsert(ctx context.Context, userID string, input profile.Input) (*model.UserProfile, *model.DailyGoal, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, input)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockProfileService) TodayGoal(ctx context.Context, userID string) (*profile.Day, error) {
	if m.todayGoalFn != nil {
		return m.todayGoalFn(ctx, userID)
	}
	return nil, model.NewProfileNotFoundError()
}

func (m *mockProfileService) SetManualGoal(ctx context.Context, userID string, targetMl int) (*model.DailyGoal, error) {
	if m.setManualFn != nil {
		return m.setManualFn(ctx, userID, targetMl)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProfileService) ClearManualGoal(ctx context.Context, userID string) (*model.DailyGoal, error) {
	if m.clearFn != nil {
		return m.clearFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func sampleProfile(userID string) *model.UserProfile {
	return &model.UserProfile{
		UserID:        userID,
		WeightKg:      70,
		Sex:           model.SexFemale,
		ActivityLevel: model.ActivityMedium,
		WakeTime:      "07:00",
		SleepTime:     "23:00",
		Timezone:      "Asia/Tokyo",
		UpdatedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProfileHandler_GetProfile_Success(t *testing.T) {
	svc := &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.UserProfile, error) {
			return sampleProfile(userID), nil
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["weightKg"] != float64(70) {
		t.Errorf("weightKg = %v", body["weightKg"])
	}
	if body["wakeTime"] != "07:00" || body["sleepTime"] != "23:00" {
		t.Errorf("wake/sleep = %v/%v", body["wakeTime"], body["sleepTime"])
	}
	if _, ok := body["heightCm"]; ok {
		t.Error("heightCm should be omitted when unset")
	}
}

func TestProfileHandler_GetProfile_NotFound(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetProfile(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeProfileNotFound)
}

func TestProfileHandler_PutProfile_Success(t *testing.T) {
	svc := &mockProfileService{
		upsertFn: func(ctx context.Context, userID string, input profile.Input) (*model.UserProfile, *model.DailyGoal, error) {
			if input.WeightKg != 70 || input.ActivityLevel != model.ActivityHigh {
				t.Errorf("input = %+v", input)
			}
			if input.HeightCm == nil || *input.HeightCm != 165.5 {
				t.Errorf("HeightCm = %v, want 165.5", input.HeightCm)
			}
			p := sampleProfile(userID)
			p.HeightCm = input.HeightCm
			return p, &model.DailyGoal{
				UserID:    userID,
				Date:      "2025-06-01",
				TargetMl:  3000,
				Algorithm: model.GoalAlgorithmV1,
			}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := jsonRequest(http.MethodPut, "/api/profile",
		`{"weightKg":70,"sex":"female","heightCm":165.5,"activityLevel":"high","wakeTime":"07:00","sleepTime":"23:00","timezone":"Asia/Tokyo"}`)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()
	h.PutProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	body := decodeBody(t, w)
	goal, ok := body["goal"].(map[string]any)
	if !ok {
		t.Fatalf("goal missing: %v", body)
	}
	if goal["targetMl"] != float64(3000) || goal["algorithm"] != "v1" {
		t.Errorf("goal = %v", goal)
	}
	prof, ok := body["profile"].(map[string]any)
	if !ok {
		t.Fatalf("profile missing: %v", body)
	}
	if prof["heightCm"] != 165.5 {
		t.Errorf("heightCm = %v", prof["heightCm"])
	}
}

func TestProfileHandler_PutProfile_ValidationError(t *testing.T) {
	svc := &mockProfileService{
		upsertFn: func(ctx context.Context, userID string, input profile.Input) (*model.UserProfile, *model.DailyGoal, error) {
			return nil, nil, model.NewValidationError("weightKg", "0より大きい値を指定してください")
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(jsonRequest(http.MethodPut, "/api/profile", `{"weightKg":0}`), "user-1")
	w := httptest.NewRecorder()
	h.PutProfile(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestProfileHandler_GetTodayGoal_IncludesWindow(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	wake := time.Date(2025, 6, 1, 7, 0, 0, 0, jst)
	sleep := time.Date(2025, 6, 1, 23, 0, 0, 0, jst)
	svc := &mockProfileService{
		todayGoalFn: func(ctx context.Context, userID string) (*profile.Day, error) {
			return &profile.Day{
				Profile:  sampleProfile(userID),
				Location: jst,
				Window:   hydration.DayWindow{Wake: wake, Sleep: sleep},
				Goal: &model.DailyGoal{
					Date:           "2025-06-01",
					TargetMl:       2500,
					Algorithm:      model.GoalAlgorithmManual,
					ManualOverride: true,
				},
			}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/goals/today", nil), "user-1")
	w := httptest.NewRecorder()
	h.GetTodayGoal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["date"] != "2025-06-01" || body["targetMl"] != float64(2500) {
		t.Errorf("body = %v", body)
	}
	if body["manualOverride"] != true {
		t.Errorf("manualOverride = %v, want true", body["manualOverride"])
	}
	if body["wakeAt"] != "2025-06-01T07:00:00+09:00" {
		t.Errorf("wakeAt = %v", body["wakeAt"])
	}
	if body["sleepAt"] != "2025-06-01T23:00:00+09:00" {
		t.Errorf("sleepAt = %v", body["sleepAt"])
	}
}

func TestProfileHandler_PutTodayGoal(t *testing.T) {
	var gotTarget int
	svc := &mockProfileService{
		setManualFn: func(ctx context.Context, userID string, targetMl int) (*model.DailyGoal, error) {
			gotTarget = targetMl
			return &model.DailyGoal{
				Date:           "2025-06-01",
				TargetMl:       targetMl,
				Algorithm:      model.GoalAlgorithmManual,
				ManualOverride: true,
			}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(jsonRequest(http.MethodPut, "/api/goals/today", `{"targetMl":2200}`), "user-1")
	w := httptest.NewRecorder()
	h.PutTodayGoal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotTarget != 2200 {
		t.Errorf("targetMl = %d, want 2200", gotTarget)
	}
	body := decodeBody(t, w)
	if body["algorithm"] != "manual" {
		t.Errorf("algorithm = %v, want manual", body["algorithm"])
	}
	if _, ok := body["wakeAt"]; ok {
		t.Error("wakeAt should be omitted for manual goal response")
	}
}

func TestProfileHandler_DeleteGoalOverride_NotOverridden(t *testing.T) {
	svc := &mockProfileService{
		clearFn: func(ctx context.Context, userID string) (*model.DailyGoal, error) {
			return nil, model.NewGoalNotOverriddenError()
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/goals/today/override", nil), "user-1")
	w := httptest.NewRecorder()
	h.DeleteGoalOverride(w, req)

	assertErrorCode(t, w, http.StatusConflict, model.ErrCodeGoalNotOverridden)
}

func TestProfileHandler_DeleteGoalOverride_Success(t *testing.T) {
	svc := &mockProfileService{
		clearFn: func(ctx context.Context, userID string) (*model.DailyGoal, error) {
			return &model.DailyGoal{Date: "2025-06-01", TargetMl: 2450, Algorithm: model.GoalAlgorithmV1}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/goals/today/override", nil), "user-1")
	w := httptest.NewRecorder()
	h.DeleteGoalOverride(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["manualOverride"] != false || body["targetMl"] != float64(2450) {
		t.Errorf("body = %v", body)
	}
}

func TestProfileHandler_Unauthenticated(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"GetProfile", h.GetProfile},
		{"PutProfile", h.PutProfile},
		{"GetTodayGoal", h.GetTodayGoal},
		{"PutTodayGoal", h.PutTodayGoal},
		{"DeleteGoalOverride", h.DeleteGoalOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, jsonRequest(http.MethodGet, "/", `{}`))
			assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
		})
	}
}
