// Package profile はユーザープロフィールと日ごとの目標摂取量を管理する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/repository"
)

const (
	// DefaultTimezone はタイムゾーン未指定時に使うIANA名。
	DefaultTimezone = "Asia/Tokyo"

	maxWeightKg = 500
	maxHeightCm = 300

	// MinManualGoalMl と MaxManualGoalMl は手動で設定できる目標量の範囲。
	MinManualGoalMl = 500
	MaxManualGoalMl = 10000
)

// Rescheduler はリマインダーの再計画を要求するインターフェース。
type Rescheduler interface {
	Refresh(ctx context.Context, userID string)
}

// Input はプロフィール登録・更新の入力。
type Input struct {
	WeightKg      float64
	Sex           model.Sex
	HeightCm      *float64
	ActivityLevel model.ActivityLevel
	WakeTime      string
	SleepTime     string
	Timezone      string
}

// Service はプロフィールと目標のビジネスロジックを提供する。
type Service struct {
	profileRepo repository.ProfileRepository
	goalRepo    repository.GoalRepository
	days        *DayResolver
	rescheduler Rescheduler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	goalRepo repository.GoalRepository,
	days *DayResolver,
	rescheduler Rescheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		goalRepo:    goalRepo,
		days:        days,
		rescheduler: rescheduler,
		logger:      logger,
		now:         time.Now,
	}
}

// Get はプロフィールを返す。未登録の場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// Upsert はプロフィールを保存し、今日の目標を再計算してリマインダーを再計画する。
// 今日の目標が手動設定されている場合は目標を変更しない。
func (s *Service) Upsert(ctx context.Context, userID string, input Input) (*model.UserProfile, *model.DailyGoal, error) {
	if err := validateInput(&input); err != nil {
		return nil, nil, err
	}

	existing, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	now := s.now()
	p := &model.UserProfile{
		UserID:        userID,
		WeightKg:      input.WeightKg,
		Sex:           input.Sex,
		HeightCm:      input.HeightCm,
		ActivityLevel: input.ActivityLevel,
		WakeTime:      input.WakeTime,
		SleepTime:     input.SleepTime,
		Timezone:      input.Timezone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	_, window, err := resolveWindow(p, now)
	if err != nil {
		return nil, nil, err
	}
	goal, err := s.goalRepo.FindByUserAndDate(ctx, userID, window.DayKey())
	if err != nil {
		return nil, nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	if goal == nil || !goal.ManualOverride {
		goal = hydration.NewV1Goal(userID, window.DayKey(), p)
		if err := s.goalRepo.Upsert(ctx, goal); err != nil {
			return nil, nil, fmt.Errorf("目標の保存に失敗しました: %w", err)
		}
	}

	s.logger.Info("プロフィールを保存しました",
		slog.String("user_id", userID),
		slog.String("date", goal.Date),
		slog.Int("target_ml", goal.TargetMl),
		slog.Bool("manual_override", goal.ManualOverride),
	)

	s.refresh(ctx, userID)
	return p, goal, nil
}

// TodayGoal は今日の時間窓と目標を返す。目標が未保存の場合は計算して保存する。
func (s *Service) TodayGoal(ctx context.Context, userID string) (*Day, error) {
	return s.days.Today(ctx, userID, s.now())
}

// SetManualGoal は今日の目標を手動で上書きする。
func (s *Service) SetManualGoal(ctx context.Context, userID string, targetMl int) (*model.DailyGoal, error) {
	if targetMl < MinManualGoalMl || targetMl > MaxManualGoalMl {
		return nil, model.NewValidationError("targetMl",
			fmt.Sprintf("%dから%dの範囲で指定してください", MinManualGoalMl, MaxManualGoalMl))
	}

	day, err := s.days.Today(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	goal := &model.DailyGoal{
		UserID:         userID,
		Date:           day.Window.DayKey(),
		TargetMl:       targetMl,
		Algorithm:      model.GoalAlgorithmManual,
		ManualOverride: true,
	}
	if err := s.goalRepo.Upsert(ctx, goal); err != nil {
		return nil, fmt.Errorf("目標の保存に失敗しました: %w", err)
	}

	s.refresh(ctx, userID)
	return goal, nil
}

// ClearManualGoal は手動設定を解除し、計算式v1の目標に戻す。
func (s *Service) ClearManualGoal(ctx context.Context, userID string) (*model.DailyGoal, error) {
	day, err := s.days.Today(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if !day.Goal.ManualOverride {
		return nil, model.NewGoalNotOverriddenError()
	}

	goal := hydration.NewV1Goal(userID, day.Window.DayKey(), day.Profile)
	if err := s.goalRepo.Upsert(ctx, goal); err != nil {
		return nil, fmt.Errorf("目標の保存に失敗しました: %w", err)
	}

	s.refresh(ctx, userID)
	return goal, nil
}

func (s *Service) refresh(ctx context.Context, userID string) {
	if s.rescheduler != nil {
		s.rescheduler.Refresh(ctx, userID)
	}
}

// validateInput は入力を検証し、タイムゾーンの既定値を補う。
func validateInput(input *Input) error {
	if input.WeightKg <= 0 || input.WeightKg > maxWeightKg {
		return model.NewValidationError("weightKg", fmt.Sprintf("0より大きく%d以下で指定してください", maxWeightKg))
	}
	if input.Sex == "" {
		input.Sex = model.SexOther
	}
	if !input.Sex.Valid() {
		return model.NewValidationError("sex", "male, female, other のいずれかを指定してください")
	}
	if input.HeightCm != nil && (*input.HeightCm <= 0 || *input.HeightCm > maxHeightCm) {
		return model.NewValidationError("heightCm", fmt.Sprintf("0より大きく%d以下で指定してください", maxHeightCm))
	}
	if input.ActivityLevel == "" {
		input.ActivityLevel = model.ActivityMedium
	}
	if !input.ActivityLevel.Valid() {
		return model.NewValidationError("activityLevel", "low, medium, high のいずれかを指定してください")
	}

	wake, err := hydration.ParseClock(input.WakeTime)
	if err != nil {
		return model.NewValidationError("wakeTime", "HH:MM形式で指定してください")
	}
	sleep, err := hydration.ParseClock(input.SleepTime)
	if err != nil {
		return model.NewValidationError("sleepTime", "HH:MM形式で指定してください")
	}
	if wake == sleep {
		return model.NewValidationError("sleepTime", "起床時刻と異なる時刻を指定してください")
	}
	input.WakeTime = wake.String()
	input.SleepTime = sleep.String()

	if input.Timezone == "" {
		input.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return model.NewValidationError("timezone", "IANAタイムゾーン名を指定してください")
	}
	return nil
}
