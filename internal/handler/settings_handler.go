package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/settings"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Settings, error)
	Update(ctx context.Context, userID string, u settings.Update) (*model.Settings, error)
}

// SettingsHandler は通知・表示設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// settingsRequest は部分更新リクエスト。省略した項目は変更しない。
type settingsRequest struct {
	Units              *model.VolumeUnit `json:"units"`
	PresetMl           []int             `json:"presetMl"`
	ReminderCount      *int              `json:"reminderCount"`
	FixedIntervalMin   *int              `json:"fixedIntervalMin"`
	ClearFixedInterval bool              `json:"clearFixedInterval"`
	SnoozeMinutes      *int              `json:"snoozeMinutes"`
	Frequency          *model.Frequency  `json:"frequency"`
	Language           *model.Language   `json:"language"`
	WebhookURL         *string           `json:"webhookUrl"`
}

type settingsResponse struct {
	Units            model.VolumeUnit `json:"units"`
	PresetMl         []int            `json:"presetMl"`
	DisplayPresets   []string         `json:"displayPresets"`
	ReminderCount    int              `json:"reminderCount"`
	FixedIntervalMin *int             `json:"fixedIntervalMin"`
	SnoozeMinutes    int              `json:"snoozeMinutes"`
	Frequency        model.Frequency  `json:"frequency"`
	Language         model.Language   `json:"language"`
	WebhookURL       string           `json:"webhookUrl"`
	UpdatedAt        *time.Time       `json:"updatedAt,omitempty"`
}

func toSettingsResponse(st *model.Settings) settingsResponse {
	resp := settingsResponse{
		Units:            st.Units,
		PresetMl:         st.PresetMl,
		DisplayPresets:   settings.DisplayPresets(st),
		ReminderCount:    st.ReminderCount,
		FixedIntervalMin: st.FixedIntervalMin,
		SnoozeMinutes:    st.SnoozeMinutes,
		Frequency:        st.Frequency,
		Language:         st.Language,
		WebhookURL:       st.WebhookURL,
	}
	if !st.UpdatedAt.IsZero() {
		updated := st.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// GetSettings は設定を返す。未保存の場合は既定値。
// GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	st, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(st))
}

// UpdateSettings は設定を部分更新する。
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.Update(r.Context(), userID, settings.Update{
		Units:              req.Units,
		PresetMl:           req.PresetMl,
		ReminderCount:      req.ReminderCount,
		FixedIntervalMin:   req.FixedIntervalMin,
		ClearFixedInterval: req.ClearFixedInterval,
		SnoozeMinutes:      req.SnoozeMinutes,
		Frequency:          req.Frequency,
		Language:           req.Language,
		WebhookURL:         req.WebhookURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(st))
}
