package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hydrate/internal/intake"
	"github.com/hitoshi/hydrate/internal/model"
)

// IntakeServiceInterface は摂取記録ハンドラーが必要とするサービスインターフェース。
type IntakeServiceInterface interface {
	Log(ctx context.Context, userID string, input intake.LogInput) (*model.IntakeLog, error)
	Delete(ctx context.Context, userID, intakeID string) error
	Today(ctx context.Context, userID string) (*intake.Summary, error)
	Insights(ctx context.Context, userID string, days int) (*intake.Insights, error)
}

// IntakeHandler は水分摂取記録のHTTPハンドラー。
type IntakeHandler struct {
	service IntakeServiceInterface
}

// NewIntakeHandler はIntakeHandlerを生成する。
func NewIntakeHandler(service IntakeServiceInterface) *IntakeHandler {
	return &IntakeHandler{service: service}
}

type intakeRequest struct {
	AmountMl int                `json:"amountMl"`
	Source   model.IntakeSource `json:"source"`
	Note     string             `json:"note"`
	DateTime *time.Time         `json:"dateTime"`
}

type intakeResponse struct {
	ID        string             `json:"id"`
	DateTime  time.Time          `json:"dateTime"`
	AmountMl  int                `json:"amountMl"`
	Source    model.IntakeSource `json:"source"`
	Note      string             `json:"note,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

type todayResponse struct {
	Date     string           `json:"date"`
	Logs     []intakeResponse `json:"logs"`
	TotalMl  int              `json:"totalMl"`
	TargetMl int              `json:"targetMl"`
	RemainMl int              `json:"remainMl"`
	Progress float64          `json:"progress"`
}

type insightsResponse struct {
	Days                 int             `json:"days"`
	From                 time.Time       `json:"from"`
	To                   time.Time       `json:"to"`
	HourlyMl             map[int]int     `json:"hourlyMl"`
	MostActiveHours      []string        `json:"mostActiveHours"`
	IdleHours            []string        `json:"idleHours"`
	RecommendedFrequency model.Frequency `json:"recommendedFrequency"`
}

func toIntakeResponse(l *model.IntakeLog) intakeResponse {
	return intakeResponse{
		ID:        l.ID,
		DateTime:  l.DateTime,
		AmountMl:  l.AmountMl,
		Source:    l.Source,
		Note:      l.Note,
		CreatedAt: l.CreatedAt,
	}
}

// LogIntake は摂取を記録する。
// POST /api/intake
func (h *IntakeHandler) LogIntake(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req intakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	log, err := h.service.Log(r.Context(), userID, intake.LogInput{
		AmountMl: req.AmountMl,
		Source:   req.Source,
		Note:     req.Note,
		DateTime: req.DateTime,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIntakeResponse(log))
}

// DeleteIntake は摂取記録を削除する。
// DELETE /api/intake/{id}
func (h *IntakeHandler) DeleteIntake(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	intakeID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, intakeID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetToday は今日の記録一覧と進捗を返す。
// GET /api/intake/today
func (h *IntakeHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	summary, err := h.service.Today(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	logs := make([]intakeResponse, 0, len(summary.Logs))
	for i := range summary.Logs {
		logs = append(logs, toIntakeResponse(&summary.Logs[i]))
	}
	writeJSON(w, http.StatusOK, todayResponse{
		Date:     summary.Date,
		Logs:     logs,
		TotalMl:  summary.TotalMl,
		TargetMl: summary.TargetMl,
		RemainMl: summary.RemainMl,
		Progress: summary.Progress,
	})
}

// GetInsights は直近days日の時間帯別摂取傾向を返す。daysの既定値は7。
// GET /api/intake/insights?days=N
func (h *IntakeHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("days", "整数で指定してください"))
			return
		}
		days = n
	}

	in, err := h.service.Insights(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, insightsResponse{
		Days:                 in.Days,
		From:                 in.From,
		To:                   in.To,
		HourlyMl:             in.HourlyMl,
		MostActiveHours:      in.MostActiveHours,
		IdleHours:            in.IdleHours,
		RecommendedFrequency: in.RecommendedFrequency,
	})
}
