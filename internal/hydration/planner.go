package hydration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

const (
	minBaseIntervalMin = 45
	maxBaseIntervalMin = 150

	behindPace        = 0.8
	behindFactor      = 0.7
	minBehindInterval = 30

	aheadPace      = 1.2
	aheadFactor    = 1.3
	maxIntervalMin = 180

	// nightWindowMin 就寝前のこの時間内は通知間隔を広げ、提案量を抑える。
	nightWindowMin = 60
	nightFactor    = 1.1

	minSnoozeMin = 5

	minSuggestMl     = 120
	defaultUpperMl   = 350
	farBehindPace    = 0.7
	farBehindUpperMl = 400
	nightUpperMl     = 250
)

// ErrInvalidPlanContext はプランナーの事前条件違反を表す。
var ErrInvalidPlanContext = errors.New("invalid reminder plan context")

// PlanContext はプランナーへの入力スナップショット。
// Sleepは呼び出し側で日付跨ぎを正規化済みであること（Sleep > Wake）。
type PlanContext struct {
	TargetMl      int
	ConsumedMl    int
	Wake          time.Time
	Sleep         time.Time
	Now           time.Time
	ReminderCount int
	// SnoozeMinutes はユーザーが明示した通知間隔。
	// nilでない場合は適応的に求めた間隔を無条件に置き換える（下限5分）。
	SnoozeMinutes *int
}

// Validate は事前条件を検証する。違反時はErrInvalidPlanContextをラップして返す。
func (c PlanContext) Validate() error {
	switch {
	case c.ReminderCount < 1:
		return fmt.Errorf("%w: reminder count must be >= 1, got %d", ErrInvalidPlanContext, c.ReminderCount)
	case c.TargetMl <= 0:
		return fmt.Errorf("%w: target must be > 0, got %d", ErrInvalidPlanContext, c.TargetMl)
	case c.ConsumedMl < 0:
		return fmt.Errorf("%w: consumed must be >= 0, got %d", ErrInvalidPlanContext, c.ConsumedMl)
	case !c.Sleep.After(c.Wake):
		return fmt.Errorf("%w: sleep %s must be after wake %s", ErrInvalidPlanContext,
			c.Sleep.Format(time.RFC3339), c.Wake.Format(time.RFC3339))
	}
	return nil
}

// PlanResult はプランナーの出力。通知配信層に渡す唯一の契約。
// NextAtがnilの場合は今日これ以上通知しないことを表す。
type PlanResult struct {
	NextAt          *time.Time
	SuggestMl       int
	Pace            float64
	PaceCategory    model.PaceCategory
	NextIntervalMin int
	RemainMl        int
	RemainMin       float64
}

// PlanOutcome はプランの結果区分。
type PlanOutcome string

const (
	OutcomeActive    PlanOutcome = "active"
	OutcomeGoalMet   PlanOutcome = "goal_met"
	OutcomeDayOver   PlanOutcome = "day_over"
	OutcomePastSleep PlanOutcome = "past_sleep"
)

// Terminal はこれ以上通知を予約しないプランかを返す。
func (r PlanResult) Terminal() bool {
	return r.NextAt == nil
}

// Outcome はプランの結果区分を返す。目標達成を一日の終了より優先する。
func (r PlanResult) Outcome() PlanOutcome {
	switch {
	case r.NextAt != nil:
		return OutcomeActive
	case r.RemainMl == 0:
		return OutcomeGoalMet
	case r.RemainMin == 0:
		return OutcomeDayOver
	default:
		return OutcomePastSleep
	}
}

// PlanNextReminder は現在の進捗から次のリマインダーを計画する。
//
// 処理は5段階で構成される:
//  1. 時間窓の解決（起床前は起床時刻を現在時刻とみなす）
//  2. 終了判定（残量0または残り時間0なら終了プラン）
//  3. ペース評価による通知間隔の決定（夜間の減速、ユーザー指定間隔の優先を含む）
//  4. 1回あたりの提案量の決定
//  5. 次回時刻の算出と就寝時刻の境界判定
//
// 同一の入力に対して常に同一の結果を返す。
func PlanNextReminder(c PlanContext) (PlanResult, error) {
	if err := c.Validate(); err != nil {
		return PlanResult{}, err
	}

	effectiveNow := c.Now
	if c.Now.Before(c.Wake) {
		effectiveNow = c.Wake
	}

	totalMin := math.Max(c.Sleep.Sub(c.Wake).Minutes(), 1)
	elapsedMin := math.Max(effectiveNow.Sub(c.Wake).Minutes(), 0)
	remainMin := math.Max(c.Sleep.Sub(effectiveNow).Minutes(), 0)

	remainMl := max(c.TargetMl-c.ConsumedMl, 0)
	if remainMl == 0 || remainMin == 0 {
		return PlanResult{
			NextAt:          nil,
			SuggestMl:       0,
			Pace:            1,
			PaceCategory:    model.PaceOnTrack,
			NextIntervalMin: 0,
			RemainMl:        remainMl,
			RemainMin:       remainMin,
		}, nil
	}

	baseInt := clampInt(int(math.Floor(totalMin/float64(c.ReminderCount))), minBaseIntervalMin, maxBaseIntervalMin)
	expectedMl := float64(c.TargetMl) * (elapsedMin / totalMin)
	pace := 1.0
	if expectedMl != 0 {
		pace = float64(c.ConsumedMl) / expectedMl
	}

	nextInt := baseInt
	category := model.PaceOnTrack
	switch {
	case pace < behindPace:
		nextInt = max(minBehindInterval, floorScale(baseInt, behindFactor))
		category = model.PaceBehind
	case pace > aheadPace:
		nextInt = min(maxIntervalMin, floorScale(baseInt, aheadFactor))
		category = model.PaceAhead
	}

	lateNight := remainMin <= nightWindowMin
	if lateNight {
		nextInt = min(maxIntervalMin, floorScale(nextInt, nightFactor))
	}

	if c.SnoozeMinutes != nil {
		nextInt = max(minSnoozeMin, *c.SnoozeMinutes)
	}

	nextIntervalMin := max(1, nextInt)
	notificationsLeft := max(1, int(math.Ceil(remainMin/float64(nextIntervalMin))))

	upper := defaultUpperMl
	if pace < farBehindPace {
		upper = farBehindUpperMl
	}
	if lateNight {
		upper = min(upper, nightUpperMl)
	}
	lower := minSuggestMl
	if remainMl < minSuggestMl {
		lower = remainMl
	}

	suggestMl := int(math.Round(float64(remainMl) / float64(notificationsLeft)))
	suggestMl = clampInt(suggestMl, lower, upper)
	suggestMl = min(suggestMl, remainMl)

	nextAt := effectiveNow.Add(time.Duration(nextIntervalMin) * time.Minute)
	if !nextAt.Before(c.Sleep) {
		// 就寝までに次の通知を挟めないため、残りをまとめて提案して終了する
		return PlanResult{
			NextAt:          nil,
			SuggestMl:       remainMl,
			Pace:            pace,
			PaceCategory:    category,
			NextIntervalMin: 0,
			RemainMl:        remainMl,
			RemainMin:       remainMin,
		}, nil
	}

	return PlanResult{
		NextAt:          &nextAt,
		SuggestMl:       suggestMl,
		Pace:            pace,
		PaceCategory:    category,
		NextIntervalMin: nextIntervalMin,
		RemainMl:        remainMl,
		RemainMin:       remainMin,
	}, nil
}

func floorScale(minutes int, factor float64) int {
	return int(math.Floor(float64(minutes) * factor))
}
