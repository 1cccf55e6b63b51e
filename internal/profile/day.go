package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/repository"
)

// Day はユーザーの「今日」を表すスナップショット。
// 時間窓はプロフィールのタイムゾーンで解決され、目標は時間窓の日付に紐づく。
type Day struct {
	Profile  *model.UserProfile
	Location *time.Location
	Window   hydration.DayWindow
	Goal     *model.DailyGoal
}

// DayResolver はプロフィールと目標から今日の時間窓と目標を求める。
type DayResolver struct {
	profileRepo repository.ProfileRepository
	goalRepo    repository.GoalRepository
}

// NewDayResolver はDayResolverを生成する。
func NewDayResolver(profileRepo repository.ProfileRepository, goalRepo repository.GoalRepository) *DayResolver {
	return &DayResolver{
		profileRepo: profileRepo,
		goalRepo:    goalRepo,
	}
}

// Today はnow時点で有効な時間窓と目標を返す。
// その日の目標が未保存の場合はプロフィールから計算して保存する。
// プロフィール未登録の場合はPROFILE_NOT_FOUNDを返す。
func (r *DayResolver) Today(ctx context.Context, userID string, now time.Time) (*Day, error) {
	p, err := r.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}

	loc, window, err := resolveWindow(p, now)
	if err != nil {
		return nil, err
	}

	goal, err := r.goalRepo.FindByUserAndDate(ctx, userID, window.DayKey())
	if err != nil {
		return nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	if goal == nil {
		goal = hydration.NewV1Goal(userID, window.DayKey(), p)
		if err := r.goalRepo.Upsert(ctx, goal); err != nil {
			return nil, fmt.Errorf("目標の保存に失敗しました: %w", err)
		}
	}

	return &Day{
		Profile:  p,
		Location: loc,
		Window:   window,
		Goal:     goal,
	}, nil
}

// resolveWindow は保存済みプロフィールの時刻とタイムゾーンから時間窓を求める。
func resolveWindow(p *model.UserProfile, now time.Time) (*time.Location, hydration.DayWindow, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, hydration.DayWindow{}, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %w", err)
	}
	wake, err := hydration.ParseClock(p.WakeTime)
	if err != nil {
		return nil, hydration.DayWindow{}, fmt.Errorf("起床時刻が不正です: %w", err)
	}
	sleep, err := hydration.ParseClock(p.SleepTime)
	if err != nil {
		return nil, hydration.DayWindow{}, fmt.Errorf("就寝時刻が不正です: %w", err)
	}
	return loc, hydration.ResolveDayWindow(wake, sleep, now, loc), nil
}
