package hydration

import (
	"testing"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

func logAt(hour, minute, ml int) model.IntakeLog {
	return model.IntakeLog{
		DateTime: time.Date(2025, 6, 1, hour, minute, 0, 0, time.UTC),
		AmountMl: ml,
	}
}

func TestAnalyzeIntake(t *testing.T) {
	logs := []model.IntakeLog{
		logAt(8, 0, 200),
		logAt(8, 30, 100),
		logAt(12, 10, 300),
		logAt(15, 0, 250),
		logAt(15, 45, 250),
		logAt(15, 50, 100),
		logAt(20, 0, 200),
	}

	got := AnalyzeIntake(logs, time.UTC)

	if got.HourlyMl[15] != 600 {
		t.Errorf("HourlyMl[15] = %d, want 600", got.HourlyMl[15])
	}
	if got.HourlyMl[8] != 300 {
		t.Errorf("HourlyMl[8] = %d, want 300", got.HourlyMl[8])
	}
	// 回数の降順、同数は時刻の昇順
	want := []string{"15:00", "08:00", "12:00", "20:00"}
	if len(got.MostActiveHours) != len(want) {
		t.Fatalf("MostActiveHours = %v, want %v", got.MostActiveHours, want)
	}
	for i := range want {
		if got.MostActiveHours[i] != want[i] {
			t.Errorf("MostActiveHours[%d] = %q, want %q", i, got.MostActiveHours[i], want[i])
		}
	}
	if len(got.IdleHours) != 20 {
		t.Errorf("len(IdleHours) = %d, want 20", len(got.IdleHours))
	}
	if got.IdleHours[0] != "00:00" {
		t.Errorf("IdleHours[0] = %q, want %q", got.IdleHours[0], "00:00")
	}
	if got.RecommendedFrequency != model.FrequencyLow {
		t.Errorf("RecommendedFrequency = %q, want %q", got.RecommendedFrequency, model.FrequencyLow)
	}
}

func TestAnalyzeIntake_TopFiveAndFrequency(t *testing.T) {
	var logs []model.IntakeLog
	for h := 7; h <= 16; h++ {
		logs = append(logs, logAt(h, 0, 100))
	}

	got := AnalyzeIntake(logs, time.UTC)

	if len(got.MostActiveHours) != 5 {
		t.Errorf("len(MostActiveHours) = %d, want 5", len(got.MostActiveHours))
	}
	if got.MostActiveHours[0] != "07:00" {
		t.Errorf("MostActiveHours[0] = %q, want %q", got.MostActiveHours[0], "07:00")
	}
	if got.RecommendedFrequency != model.FrequencyHigh {
		t.Errorf("RecommendedFrequency = %q, want %q", got.RecommendedFrequency, model.FrequencyHigh)
	}
}

func TestAnalyzeIntake_UsesLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	// 00:30 UTC は 09:30 JST
	got := AnalyzeIntake([]model.IntakeLog{logAt(0, 30, 200)}, jst)

	if got.HourlyMl[9] != 200 {
		t.Errorf("HourlyMl[9] = %d, want 200", got.HourlyMl[9])
	}
}

func TestAnalyzeIntake_Empty(t *testing.T) {
	got := AnalyzeIntake(nil, time.UTC)

	if len(got.MostActiveHours) != 0 {
		t.Errorf("MostActiveHours = %v, want empty", got.MostActiveHours)
	}
	if len(got.IdleHours) != 24 {
		t.Errorf("len(IdleHours) = %d, want 24", len(got.IdleHours))
	}
	if got.RecommendedFrequency != model.FrequencyLow {
		t.Errorf("RecommendedFrequency = %q, want low", got.RecommendedFrequency)
	}
}

func TestRecommendFrequency(t *testing.T) {
	tests := []struct {
		hours int
		want  model.Frequency
	}{
		{0, model.FrequencyLow},
		{4, model.FrequencyLow},
		{5, model.FrequencyMedium},
		{7, model.FrequencyMedium},
		{8, model.FrequencyHigh},
	}
	for _, tt := range tests {
		if got := recommendFrequency(tt.hours); got != tt.want {
			t.Errorf("recommendFrequency(%d) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
