// Package cleanup は保持期間を過ぎたデータの自動削除ジョブを提供する。
// 確定済みのリマインダー（デフォルト30日）と摂取記録（デフォルト365日）を
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ReminderPurger は確定済みリマインダーの削除インターフェース。
type ReminderPurger interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// IntakePurger は古い摂取記録の削除インターフェース。
type IntakePurger interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したデータの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	reminders ReminderPurger
	intake    IntakePurger
	logger    *slog.Logger
	now       func() time.Time

	ReminderRetentionDays int // 確定済みリマインダーの保持日数（デフォルト: 30）
	IntakeRetentionDays   int // 摂取記録の保持日数（デフォルト: 365）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(reminders ReminderPurger, intake IntakePurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		reminders:             reminders,
		intake:                intake,
		logger:                logger,
		now:                   time.Now,
		ReminderRetentionDays: 30,
		IntakeRetentionDays:   365,
	}
}

// Run は保持期間を超過したリマインダーと摂取記録を削除する。
// リマインダーの削除に失敗しても摂取記録の削除は試み、両方のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	reminderCount, reminderErr := j.reminders.DeleteFinishedBefore(ctx, cutoff(start, j.ReminderRetentionDays))
	if reminderErr != nil {
		j.logger.Error("リマインダーのクリーンアップに失敗しました",
			slog.String("error", reminderErr.Error()),
			slog.Int("retention_days", j.ReminderRetentionDays),
		)
		reminderErr = fmt.Errorf("リマインダークリーンアップの実行に失敗: %w", reminderErr)
	}

	intakeCount, intakeErr := j.intake.DeleteOlderThan(ctx, cutoff(start, j.IntakeRetentionDays))
	if intakeErr != nil {
		j.logger.Error("摂取記録のクリーンアップに失敗しました",
			slog.String("error", intakeErr.Error()),
			slog.Int("retention_days", j.IntakeRetentionDays),
		)
		intakeErr = fmt.Errorf("摂取記録クリーンアップの実行に失敗: %w", intakeErr)
	}

	if reminderErr != nil || intakeErr != nil {
		return errors.Join(reminderErr, intakeErr)
	}

	duration := j.now().Sub(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_reminders", reminderCount),
		slog.Int64("deleted_intake_logs", intakeCount),
		slog.Int("reminder_retention_days", j.ReminderRetentionDays),
		slog.Int("intake_retention_days", j.IntakeRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// Start は起動直後と以後interval毎にRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

func cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
