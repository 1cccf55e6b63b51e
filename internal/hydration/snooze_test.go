package hydration

import (
	"testing"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

func offsets(base time.Time, slots []SnoozeSlot) []int {
	out := make([]int, len(slots))
	for i, s := range slots {
		out[i] = int(s.At.Sub(base) / time.Minute)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlanSnoozeBurst_FrequencyDefaults(t *testing.T) {
	base := at("10:00")
	tests := []struct {
		frequency model.Frequency
		want      []int
	}{
		{model.FrequencyLow, []int{5, 20, 35, 50}},
		{model.FrequencyMedium, []int{5, 15, 25, 35, 45, 55}},
		// 7回の既定値は合計6件に制限される
		{model.FrequencyHigh, []int{5, 13, 21, 29, 37, 45}},
		{model.Frequency("unknown"), []int{5, 15, 25, 35, 45, 55}},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			got := offsets(base, PlanSnoozeBurst(base, SnoozeOptions{Frequency: tt.frequency}))
			if !equalInts(got, tt.want) {
				t.Errorf("offsets = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanSnoozeBurst_Kinds(t *testing.T) {
	slots := PlanSnoozeBurst(at("10:00"), SnoozeOptions{Frequency: model.FrequencyLow})

	if slots[0].Kind != model.KindInitial || slots[0].SnoozeCount != 0 {
		t.Errorf("first slot = %+v, want initial with count 0", slots[0])
	}
	for i, s := range slots[1:] {
		if s.Kind != model.KindSnooze {
			t.Errorf("slot[%d].Kind = %q, want %q", i+1, s.Kind, model.KindSnooze)
		}
		if s.SnoozeCount != i+1 {
			t.Errorf("slot[%d].SnoozeCount = %d, want %d", i+1, s.SnoozeCount, i+1)
		}
	}
}

func TestPlanSnoozeBurst_Overrides(t *testing.T) {
	base := at("10:00")

	t.Run("interval is capped at 30 minutes", func(t *testing.T) {
		got := offsets(base, PlanSnoozeBurst(base, SnoozeOptions{IntervalMinutes: 45, MaxSnoozes: 2}))
		if want := []int{5, 35, 65}; !equalInts(got, want) {
			t.Errorf("offsets = %v, want %v", got, want)
		}
	})

	t.Run("max snoozes above limit", func(t *testing.T) {
		got := PlanSnoozeBurst(base, SnoozeOptions{IntervalMinutes: 5, MaxSnoozes: 20})
		if len(got) != 6 {
			t.Errorf("len = %d, want 6", len(got))
		}
	})

	t.Run("slots at or after sleep are dropped", func(t *testing.T) {
		slots := PlanSnoozeBurst(base, SnoozeOptions{
			Frequency: model.FrequencyMedium,
			Sleep:     base.Add(25 * time.Minute),
		})
		if want := []int{5, 15}; !equalInts(offsets(base, slots), want) {
			t.Errorf("offsets = %v, want %v", offsets(base, slots), want)
		}
	})

	t.Run("sleep before first slot", func(t *testing.T) {
		slots := PlanSnoozeBurst(base, SnoozeOptions{Sleep: base.Add(time.Minute)})
		if len(slots) != 0 {
			t.Errorf("len = %d, want 0", len(slots))
		}
	})
}
