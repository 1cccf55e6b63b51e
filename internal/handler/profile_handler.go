package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/profile"
)

// ProfileServiceInterface はプロフィール・目標ハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	// Upsert はプロフィールを保存し、今日の目標を再計算する（手動設定中を除く）。
	Upsert(ctx context.Context, userID string, input profile.Input) (*model.UserProfile, *model.DailyGoal, error)
	TodayGoal(ctx context.Context, userID string) (*profile.Day, error)
	SetManualGoal(ctx context.Context, userID string, targetMl int) (*model.DailyGoal, error)
	ClearManualGoal(ctx context.Context, userID string) (*model.DailyGoal, error)
}

// ProfileHandler はプロフィールと日々の目標のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type profileRequest struct {
	WeightKg      float64             `json:"weightKg"`
	Sex           model.Sex           `json:"sex"`
	HeightCm      *float64            `json:"heightCm"`
	ActivityLevel model.ActivityLevel `json:"activityLevel"`
	WakeTime      string              `json:"wakeTime"`
	SleepTime     string              `json:"sleepTime"`
	Timezone      string              `json:"timezone"`
}

type profileResponse struct {
	WeightKg      float64             `json:"weightKg"`
	Sex           model.Sex           `json:"sex"`
	HeightCm      *float64            `json:"heightCm,omitempty"`
	ActivityLevel model.ActivityLevel `json:"activityLevel"`
	WakeTime      string              `json:"wakeTime"`
	SleepTime     string              `json:"sleepTime"`
	Timezone      string              `json:"timezone"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type goalResponse struct {
	Date           string              `json:"date"`
	TargetMl       int                 `json:"targetMl"`
	Algorithm      model.GoalAlgorithm `json:"algorithm"`
	ManualOverride bool                `json:"manualOverride"`
	WakeAt         *time.Time          `json:"wakeAt,omitempty"`
	SleepAt        *time.Time          `json:"sleepAt,omitempty"`
}

type profileUpsertResponse struct {
	Profile profileResponse `json:"profile"`
	Goal    goalResponse    `json:"goal"`
}

type manualGoalRequest struct {
	TargetMl int `json:"targetMl"`
}

func toProfileResponse(p *model.UserProfile) profileResponse {
	return profileResponse{
		WeightKg:      p.WeightKg,
		Sex:           p.Sex,
		HeightCm:      p.HeightCm,
		ActivityLevel: p.ActivityLevel,
		WakeTime:      p.WakeTime,
		SleepTime:     p.SleepTime,
		Timezone:      p.Timezone,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toGoalResponse(g *model.DailyGoal) goalResponse {
	return goalResponse{
		Date:           g.Date,
		TargetMl:       g.TargetMl,
		Algorithm:      g.Algorithm,
		ManualOverride: g.ManualOverride,
	}
}

// GetProfile はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// PutProfile はプロフィールを作成または更新する。
// PUT /api/profile
func (h *ProfileHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, goal, err := h.service.Upsert(r.Context(), userID, profile.Input{
		WeightKg:      req.WeightKg,
		Sex:           req.Sex,
		HeightCm:      req.HeightCm,
		ActivityLevel: req.ActivityLevel,
		WakeTime:      req.WakeTime,
		SleepTime:     req.SleepTime,
		Timezone:      req.Timezone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileUpsertResponse{
		Profile: toProfileResponse(p),
		Goal:    toGoalResponse(goal),
	})
}

// GetTodayGoal は今日の目標と時間窓を返す。
// GET /api/goals/today
func (h *ProfileHandler) GetTodayGoal(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	day, err := h.service.TodayGoal(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toGoalResponse(day.Goal)
	wake, sleep := day.Window.Wake, day.Window.Sleep
	resp.WakeAt, resp.SleepAt = &wake, &sleep
	writeJSON(w, http.StatusOK, resp)
}

// PutTodayGoal は今日の目標を手動で設定する。
// PUT /api/goals/today
func (h *ProfileHandler) PutTodayGoal(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req manualGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.service.SetManualGoal(r.Context(), userID, req.TargetMl)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

// DeleteGoalOverride は手動設定を解除し、計算式の目標に戻す。
// DELETE /api/goals/today/override
func (h *ProfileHandler) DeleteGoalOverride(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	goal, err := h.service.ClearManualGoal(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}
