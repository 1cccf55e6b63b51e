package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresReminderRepo はPostgreSQLを使用したリマインダーリポジトリ。
// remindersテーブルを配信アウトボックスとして扱う。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

const reminderColumns = `id, user_id, stream, kind, sequence_id, snooze_count, fire_at, scheduled_at,
	suggest_ml, pace_category, title, body, status, attempts, last_error, created_at, updated_at`

func scanReminder(row rowScanner) (*model.Reminder, error) {
	rem := &model.Reminder{}
	var lastError sql.NullString
	if err := row.Scan(
		&rem.ID, &rem.UserID, &rem.Stream, &rem.Kind, &rem.SequenceID, &rem.SnoozeCount, &rem.FireAt,
		&rem.ScheduledAt, &rem.SuggestMl, &rem.PaceCategory, &rem.Title, &rem.Body, &rem.Status, &rem.Attempts,
		&lastError, &rem.CreatedAt, &rem.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rem.LastError = nullStringValue(lastError)
	return rem, nil
}

func scanReminders(rows *sql.Rows) ([]*model.Reminder, error) {
	defer rows.Close()

	var reminders []*model.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("リマインダーの読み取りに失敗しました: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインダーの走査に失敗しました: %w", err)
	}
	return reminders, nil
}

// ReplacePending は指定系列の配信待ち・送信中リマインダーを取り消し、新しいリマインダーを登録する。
//
// pg_advisory_xact_lockでユーザー単位に直列化するため、複数のAPIインスタンスが
// 同時に再スケジュールしても最後に書いた結果だけが配信待ちとして残る。
// 送信中の行も取り消すので、配信に失敗しても再試行で配信待ちに戻ることはない。
func (r *PostgresReminderRepo) ReplacePending(
	ctx context.Context,
	userID string,
	streams []model.ReminderStream,
	reminders []*model.Reminder,
) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return 0, fmt.Errorf("failed to acquire reminder lock: %w", err)
	}

	names := make([]string, len(streams))
	for i, s := range streams {
		names[i] = string(s)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE reminders SET status = 'cancelled', updated_at = now()
		 WHERE user_id = $1 AND status IN ('pending', 'sending') AND stream = ANY($2)`,
		userID, pq.Array(names),
	)
	if err != nil {
		return 0, fmt.Errorf("配信待ちリマインダーの取り消しに失敗しました: %w", err)
	}
	cancelled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	for _, rem := range reminders {
		if rem.ScheduledAt.IsZero() {
			rem.ScheduledAt = rem.FireAt
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (`+reminderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			rem.ID, rem.UserID, rem.Stream, rem.Kind, rem.SequenceID, rem.SnoozeCount, rem.FireAt,
			rem.ScheduledAt, rem.SuggestMl, rem.PaceCategory, rem.Title, rem.Body, rem.Status, rem.Attempts,
			nullString(rem.LastError), rem.CreatedAt, rem.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("リマインダーの登録に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return cancelled, nil
}

// ListPending はユーザーの配信待ちリマインダーをfire_at昇順で返す。
func (r *PostgresReminderRepo) ListPending(ctx context.Context, userID string) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders
		 WHERE user_id = $1 AND status = 'pending'
		 ORDER BY fire_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("配信待ちリマインダーの取得に失敗しました: %w", err)
	}
	return scanReminders(rows)
}

// ClaimDue はfire_at <= now の配信待ちリマインダーを最大limit件取得し、送信中にする。
// FOR UPDATE SKIP LOCKEDで他のワーカーが処理中の行を飛ばす。
func (r *PostgresReminderRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE reminders SET status = 'sending', attempts = attempts + 1, updated_at = now()
		 WHERE id IN (
		     SELECT id FROM reminders
		     WHERE status = 'pending' AND fire_at <= $1
		     ORDER BY fire_at ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+reminderColumns,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象リマインダーの取得に失敗しました: %w", err)
	}
	return scanReminders(rows)
}

// 以下の状態更新は送信中の行だけを対象にする。
// 配信中に再スケジュールで取り消された行は更新せずErrSupersededを返す。

// MarkSent は送信済みにする。
func (r *PostgresReminderRepo) MarkSent(ctx context.Context, id string) error {
	return r.settle(ctx, "MarkSent",
		`UPDATE reminders SET status = 'sent', last_error = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'sending'`,
		id,
	)
}

// MarkRetry は次回の試行時刻を設定して配信待ちに戻す。
func (r *PostgresReminderRepo) MarkRetry(ctx context.Context, id string, nextAt time.Time, lastError string) error {
	return r.settle(ctx, "MarkRetry",
		`UPDATE reminders SET status = 'pending', fire_at = $2, last_error = $3, updated_at = now()
		 WHERE id = $1 AND status = 'sending'`,
		id, nextAt, nullString(lastError),
	)
}

// MarkFailed は配信失敗として確定する。
func (r *PostgresReminderRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.settle(ctx, "MarkFailed",
		`UPDATE reminders SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1 AND status = 'sending'`,
		id, nullString(lastError),
	)
}

func (r *PostgresReminderRepo) settle(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("reminder %s failed: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", args[0], ErrSuperseded)
	}
	return nil
}

// ReleaseStale はstaleBefore以前から送信中のままのリマインダーを配信待ちに戻す。
// 配信中にワーカーが停止した場合の取りこぼしを回収する。
func (r *PostgresReminderRepo) ReleaseStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET status = 'pending', updated_at = now()
		 WHERE status = 'sending' AND updated_at < $1`,
		staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("送信中リマインダーの回収に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// DeleteFinishedBefore はbefore以前に確定（送信済み・取消・失敗）したリマインダーを削除する。
func (r *PostgresReminderRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders
		 WHERE status IN ('sent', 'cancelled', 'failed') AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古いリマインダーの削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ ReminderRepository = (*PostgresReminderRepo)(nil)
