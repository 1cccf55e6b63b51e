package hydration

import (
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

// maxActiveHours は上位として返す時間帯の数。
const maxActiveHours = 5

// IntakeInsight は摂取記録から求めた時間帯ごとの傾向。
type IntakeInsight struct {
	// HourlyMl は時（0-23）ごとの合計摂取量。
	HourlyMl map[int]int
	// MostActiveHours は摂取回数の多い時間帯（"HH:00"、最大5件）。
	MostActiveHours []string
	// IdleHours は一度も摂取がなかった時間帯（"HH:00"）。
	IdleHours []string
	// RecommendedFrequency は摂取のあった時間帯数から推奨する通知頻度。
	RecommendedFrequency model.Frequency
}

// AnalyzeIntake は摂取記録をloc基準の時間帯で集計する。
func AnalyzeIntake(logs []model.IntakeLog, loc *time.Location) IntakeInsight {
	hourlyMl := make(map[int]int)
	hourlyCount := make(map[int]int)
	for _, l := range logs {
		h := l.DateTime.In(loc).Hour()
		hourlyMl[h] += l.AmountMl
		hourlyCount[h]++
	}

	hours := make([]int, 0, len(hourlyCount))
	for h := range hourlyCount {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if hourlyCount[hours[i]] != hourlyCount[hours[j]] {
			return hourlyCount[hours[i]] > hourlyCount[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > maxActiveHours {
		hours = hours[:maxActiveHours]
	}
	active := make([]string, len(hours))
	for i, h := range hours {
		active[i] = hourLabel(h)
	}

	idle := []string{}
	for h := 0; h < 24; h++ {
		if _, ok := hourlyCount[h]; !ok {
			idle = append(idle, hourLabel(h))
		}
	}

	return IntakeInsight{
		HourlyMl:             hourlyMl,
		MostActiveHours:      active,
		IdleHours:            idle,
		RecommendedFrequency: recommendFrequency(len(hourlyCount)),
	}
}

func recommendFrequency(activeHours int) model.Frequency {
	switch {
	case activeHours >= 8:
		return model.FrequencyHigh
	case activeHours >= 5:
		return model.FrequencyMedium
	default:
		return model.FrequencyLow
	}
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
