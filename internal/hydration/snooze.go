package hydration

import (
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

const (
	// snoozeLeadMin は最初の通知を基準時刻から遅らせる分数。
	snoozeLeadMin = 5
	// maxSnoozeIntervalMin はスヌーズ間隔の上限。
	maxSnoozeIntervalMin = 30
	// maxSnoozes は初回通知に続くスヌーズ回数の上限。
	maxSnoozes = 5
)

// snoozeDefaults は通知頻度ごとの既定のスヌーズ回数と間隔。
var snoozeDefaults = map[model.Frequency]struct {
	count    int
	interval int
}{
	model.FrequencyLow:    {count: 3, interval: 15},
	model.FrequencyMedium: {count: 5, interval: 10},
	model.FrequencyHigh:   {count: 7, interval: 8},
}

// SnoozeOptions はスヌーズ連続通知の設定。ゼロ値の項目は通知頻度の既定値を使う。
type SnoozeOptions struct {
	Frequency       model.Frequency
	IntervalMinutes int
	MaxSnoozes      int
	// Sleep が設定されている場合、就寝時刻以降の通知は含めない。
	Sleep time.Time
}

// SnoozeSlot はスヌーズ連続通知の1件分。
type SnoozeSlot struct {
	At          time.Time
	Kind        model.ReminderKind
	SnoozeCount int
}

// PlanSnoozeBurst は基準時刻からのスヌーズ連続通知の時刻を求める。
// 初回は基準の5分後、以降は間隔ごとに続き、合計は最大6件。
func PlanSnoozeBurst(base time.Time, opts SnoozeOptions) []SnoozeSlot {
	def, ok := snoozeDefaults[opts.Frequency]
	if !ok {
		def = snoozeDefaults[model.FrequencyMedium]
	}
	interval := def.interval
	if opts.IntervalMinutes > 0 {
		interval = opts.IntervalMinutes
	}
	interval = min(interval, maxSnoozeIntervalMin)
	count := def.count
	if opts.MaxSnoozes > 0 {
		count = opts.MaxSnoozes
	}
	total := min(count+1, maxSnoozes+1)

	slots := make([]SnoozeSlot, 0, total)
	for i := 0; i < total; i++ {
		offset := snoozeLeadMin + i*interval
		slot := SnoozeSlot{
			At:          base.Add(time.Duration(offset) * time.Minute),
			Kind:        model.KindSnooze,
			SnoozeCount: i,
		}
		if i == 0 {
			slot.Kind = model.KindInitial
		}
		if !opts.Sleep.IsZero() && !slot.At.Before(opts.Sleep) {
			break
		}
		slots = append(slots, slot)
	}
	return slots
}
