// Package settings はユーザーごとのアプリ設定を管理する。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/repository"
	"github.com/hitoshi/hydrate/internal/security"
)

const (
	maxPresets       = 8
	maxPresetMl      = 5000
	maxReminderCount = 48
	minFixedInterval = 5
	maxFixedInterval = 180
	maxSnoozeMinutes = 30
)

// Rescheduler はリマインダーの再計画を要求するインターフェース。
type Rescheduler interface {
	Refresh(ctx context.Context, userID string)
}

// Update は設定の部分更新。nilの項目は変更しない。
type Update struct {
	Units         *model.VolumeUnit
	PresetMl      []int
	ReminderCount *int
	// FixedIntervalMin はユーザー指定の通知間隔。ClearFixedIntervalがtrueの場合は解除する。
	FixedIntervalMin   *int
	ClearFixedInterval bool
	SnoozeMinutes      *int
	Frequency          *model.Frequency
	Language           *model.Language
	// WebhookURL は空文字列で解除する。
	WebhookURL *string
}

// Service は設定のビジネスロジックを提供する。
type Service struct {
	settingsRepo repository.SettingsRepository
	guard        security.WebhookGuard
	rescheduler  Rescheduler
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	settingsRepo repository.SettingsRepository,
	guard security.WebhookGuard,
	rescheduler Rescheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		guard:        guard,
		rescheduler:  rescheduler,
		logger:       logger,
	}
}

// Get は設定を返す。未保存の場合は既定値を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Settings, error) {
	st, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil {
		return model.DefaultSettings(userID), nil
	}
	return st, nil
}

// Update は設定を部分更新し、リマインダーを再計画する。
func (s *Service) Update(ctx context.Context, userID string, u Update) (*model.Settings, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(st, u); err != nil {
		return nil, err
	}
	st.UpdatedAt = time.Now()

	if err := s.settingsRepo.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	s.logger.Info("設定を更新しました",
		slog.String("user_id", userID),
		slog.Int("reminder_count", st.ReminderCount),
		slog.String("frequency", string(st.Frequency)),
		slog.Bool("webhook", st.WebhookURL != ""),
	)

	if s.rescheduler != nil {
		s.rescheduler.Refresh(ctx, userID)
	}
	return st, nil
}

// apply は検証済みの変更をstに反映する。検証に失敗した場合stは途中まで変更されうる。
func (s *Service) apply(st *model.Settings, u Update) error {
	if u.Units != nil {
		if !u.Units.Valid() {
			return model.NewValidationError("units", "ml または oz を指定してください")
		}
		st.Units = *u.Units
	}
	if u.PresetMl != nil {
		if len(u.PresetMl) == 0 || len(u.PresetMl) > maxPresets {
			return model.NewValidationError("presetMl", fmt.Sprintf("1から%d個で指定してください", maxPresets))
		}
		for _, v := range u.PresetMl {
			if v < 1 || v > maxPresetMl {
				return model.NewValidationError("presetMl", fmt.Sprintf("各値は1から%dの範囲で指定してください", maxPresetMl))
			}
		}
		presets := slices.Clone(u.PresetMl)
		slices.Sort(presets)
		st.PresetMl = slices.Compact(presets)
	}
	if u.ReminderCount != nil {
		if *u.ReminderCount < 1 || *u.ReminderCount > maxReminderCount {
			return model.NewValidationError("reminderCount", fmt.Sprintf("1から%dの範囲で指定してください", maxReminderCount))
		}
		st.ReminderCount = *u.ReminderCount
	}
	switch {
	case u.ClearFixedInterval:
		st.FixedIntervalMin = nil
	case u.FixedIntervalMin != nil:
		v := *u.FixedIntervalMin
		if v < minFixedInterval || v > maxFixedInterval {
			return model.NewValidationError("fixedIntervalMin",
				fmt.Sprintf("%dから%dの範囲で指定してください", minFixedInterval, maxFixedInterval))
		}
		st.FixedIntervalMin = &v
	}
	if u.SnoozeMinutes != nil {
		if *u.SnoozeMinutes < 1 || *u.SnoozeMinutes > maxSnoozeMinutes {
			return model.NewValidationError("snoozeMinutes", fmt.Sprintf("1から%dの範囲で指定してください", maxSnoozeMinutes))
		}
		st.SnoozeMinutes = *u.SnoozeMinutes
	}
	if u.Frequency != nil {
		if !u.Frequency.Valid() {
			return model.NewValidationError("frequency", "low, medium, high のいずれかを指定してください")
		}
		st.Frequency = *u.Frequency
	}
	if u.Language != nil {
		if !u.Language.Valid() {
			return model.NewValidationError("language", "ja または en を指定してください")
		}
		st.Language = *u.Language
	}
	if u.WebhookURL != nil {
		raw := strings.TrimSpace(*u.WebhookURL)
		if raw != "" {
			if err := s.guard.ValidateURL(raw); err != nil {
				return model.NewInvalidWebhookURLError(err.Error())
			}
		}
		st.WebhookURL = raw
	}
	return nil
}

// DisplayPresets は表示単位に合わせたプリセット量の文字列を返す。
func DisplayPresets(st *model.Settings) []string {
	out := make([]string, len(st.PresetMl))
	for i, ml := range st.PresetMl {
		out[i] = hydration.FormatVolume(ml, st.Units)
	}
	return out
}
