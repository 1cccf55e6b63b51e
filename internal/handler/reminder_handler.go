package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/reminder"
)

// ReminderServiceInterface はリマインダーハンドラーが必要とするサービスインターフェース。
type ReminderServiceInterface interface {
	// Preview は登録せずに次のリマインダーを計画する。
	Preview(ctx context.Context, userID string) (*reminder.Outcome, error)
	// Reschedule は配信待ちを置き換えて次のリマインダーを登録する。
	Reschedule(ctx context.Context, userID string) (*reminder.Outcome, error)
	Snooze(ctx context.Context, userID string) (*reminder.SnoozeOutcome, error)
	Pending(ctx context.Context, userID string) ([]*model.Reminder, error)
}

// ReminderHandler はリマインダー計画のHTTPハンドラー。
type ReminderHandler struct {
	service ReminderServiceInterface
}

// NewReminderHandler はReminderHandlerを生成する。
func NewReminderHandler(service ReminderServiceInterface) *ReminderHandler {
	return &ReminderHandler{service: service}
}

type planResponse struct {
	NextAt          *time.Time         `json:"nextAt"`
	SuggestMl       int                `json:"suggestMl"`
	Pace            float64            `json:"pace"`
	PaceCategory    model.PaceCategory `json:"paceCategory"`
	NextIntervalMin int                `json:"nextIntervalMin"`
	RemainMl        int                `json:"remainMl"`
	RemainMin       float64            `json:"remainMin"`
}

type reminderResponse struct {
	ID           string               `json:"id,omitempty"`
	Stream       model.ReminderStream `json:"stream"`
	Kind         model.ReminderKind   `json:"kind"`
	SequenceID   string               `json:"sequenceId,omitempty"`
	SnoozeCount  int                  `json:"snoozeCount"`
	FireAt       time.Time            `json:"fireAt"`
	SuggestMl    int                  `json:"suggestMl"`
	PaceCategory model.PaceCategory   `json:"paceCategory"`
	Title        string               `json:"title"`
	Body         string               `json:"body"`
	Status       model.ReminderStatus `json:"status"`
}

type outcomeResponse struct {
	Scheduled bool              `json:"scheduled"`
	Reason    reminder.Reason   `json:"reason,omitempty"`
	Plan      planResponse      `json:"plan"`
	Reminder  *reminderResponse `json:"reminder,omitempty"`
	Cancelled int64             `json:"cancelled"`
}

type snoozeResponse struct {
	Scheduled bool               `json:"scheduled"`
	Reason    reminder.Reason    `json:"reason,omitempty"`
	Reminders []reminderResponse `json:"reminders"`
	Cancelled int64              `json:"cancelled"`
}

type pendingResponse struct {
	Reminders []reminderResponse `json:"reminders"`
}

func toPlanResponse(p hydration.PlanResult) planResponse {
	return planResponse{
		NextAt:          p.NextAt,
		SuggestMl:       p.SuggestMl,
		Pace:            p.Pace,
		PaceCategory:    p.PaceCategory,
		NextIntervalMin: p.NextIntervalMin,
		RemainMl:        p.RemainMl,
		RemainMin:       p.RemainMin,
	}
}

func toReminderResponse(r *model.Reminder) reminderResponse {
	return reminderResponse{
		ID:           r.ID,
		Stream:       r.Stream,
		Kind:         r.Kind,
		SequenceID:   r.SequenceID,
		SnoozeCount:  r.SnoozeCount,
		FireAt:       r.FireAt,
		SuggestMl:    r.SuggestMl,
		PaceCategory: r.PaceCategory,
		Title:        r.Title,
		Body:         r.Body,
		Status:       r.Status,
	}
}

func toReminderResponses(reminders []*model.Reminder) []reminderResponse {
	resp := make([]reminderResponse, 0, len(reminders))
	for _, r := range reminders {
		resp = append(resp, toReminderResponse(r))
	}
	return resp
}

func toOutcomeResponse(out *reminder.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Scheduled: out.Scheduled,
		Reason:    out.Reason,
		Plan:      toPlanResponse(out.Plan),
		Cancelled: out.Cancelled,
	}
	if out.Reminder != nil {
		r := toReminderResponse(out.Reminder)
		resp.Reminder = &r
	}
	return resp
}

// GetPlan は現在の進捗から次のリマインダーを計画して返す。登録はしない。
// GET /api/reminders/plan
func (h *ReminderHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	out, err := h.service.Preview(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

// Reschedule は次のリマインダーを再計画して登録する。
// POST /api/reminders/reschedule
func (h *ReminderHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	out, err := h.service.Reschedule(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

// Snooze はスヌーズ連続通知を登録する。
// POST /api/reminders/snooze
func (h *ReminderHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	out, err := h.service.Snooze(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snoozeResponse{
		Scheduled: out.Scheduled,
		Reason:    out.Reason,
		Reminders: toReminderResponses(out.Reminders),
		Cancelled: out.Cancelled,
	})
}

// GetPending は配信待ちのリマインダー一覧を返す。
// GET /api/reminders/pending
func (h *ReminderHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	reminders, err := h.service.Pending(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Reminders: toReminderResponses(reminders)})
}
