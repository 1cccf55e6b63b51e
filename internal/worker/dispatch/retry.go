package dispatch

import (
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 30 * time.Minute
	// maxDeliveryDelay は最初の予定時刻からこれ以上遅れる再試行は行わない。
	// 遅れて届いたリマインダーは提案量も次回予定も古くなっている。
	maxDeliveryDelay = time.Hour
)

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 1回目の失敗で1分、以降2倍ずつ増加し、最大30分。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// NextRetry は配信に失敗したリマインダーの再試行時刻を返す。
// 試行回数が上限に達した場合、または再試行時刻が有効期間を過ぎる場合はfalseを返す。
// 有効期間はFireAtではなく最初の予定時刻から数える。
func NextRetry(r *model.Reminder, now time.Time, maxAttempts int) (time.Time, bool) {
	if r.Attempts >= maxAttempts {
		return time.Time{}, false
	}
	next := now.Add(CalculateBackoff(r.Attempts))
	if next.Sub(scheduledAt(r)) > maxDeliveryDelay {
		return time.Time{}, false
	}
	return next, true
}

// scheduledAt は最初の配信予定時刻を返す。未設定の行はFireAtで代用する。
func scheduledAt(r *model.Reminder) time.Time {
	if r.ScheduledAt.IsZero() {
		return r.FireAt
	}
	return r.ScheduledAt
}
