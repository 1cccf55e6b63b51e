// Package hydration は水分補給の目標量計算とリマインダー計画を提供する。
// このパッケージの関数はすべて副作用を持たない純粋関数であり、
// 複数のgoroutineから同時に呼び出しても安全である。
package hydration

import (
	"math"

	"github.com/hitoshi/hydrate/internal/model"
)

const (
	// mlPerKg は体重1kgあたりの基礎必要量。
	mlPerKg = 35
	// MinDailyTargetMl は目標量の下限。
	MinDailyTargetMl = 1200
	// MaxDailyTargetMl は目標量の上限。
	MaxDailyTargetMl = 5000
)

// activityBonusMl は活動量ごとの加算量。
var activityBonusMl = map[model.ActivityLevel]int{
	model.ActivityLow:    0,
	model.ActivityMedium: 500,
	model.ActivityHigh:   1000,
}

// CalculateDailyGoal は体重と活動量から1日の目標摂取量（ml）を計算する。
// 結果は常に [MinDailyTargetMl, MaxDailyTargetMl] の整数に収まる。
// 未知の活動量は加算なしとして扱う。
func CalculateDailyGoal(weightKg float64, activity model.ActivityLevel) int {
	base := int(math.Round(weightKg * mlPerKg))
	return clampInt(base+activityBonusMl[activity], MinDailyTargetMl, MaxDailyTargetMl)
}

// NewV1Goal は計算式v1による目標を生成する。永続化は呼び出し側が行う。
func NewV1Goal(userID, date string, profile *model.UserProfile) *model.DailyGoal {
	return &model.DailyGoal{
		UserID:         userID,
		Date:           date,
		TargetMl:       CalculateDailyGoal(profile.WeightKg, profile.ActivityLevel),
		Algorithm:      model.GoalAlgorithmV1,
		ManualOverride: false,
	}
}

// clampInt はvalueを[lo, hi]に収める。lo > hi の場合はloを返す。
func clampInt(value, lo, hi int) int {
	if lo > hi {
		return lo
	}
	return min(max(value, lo), hi)
}
