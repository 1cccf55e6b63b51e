package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresIntakeRepo はPostgreSQLを使用した摂取記録リポジトリ。
type PostgresIntakeRepo struct {
	db *sql.DB
}

// NewPostgresIntakeRepo はPostgresIntakeRepoを生成する。
func NewPostgresIntakeRepo(db *sql.DB) *PostgresIntakeRepo {
	return &PostgresIntakeRepo{db: db}
}

const intakeColumns = `id, user_id, date_time, amount_ml, source, note, created_at`

func scanIntake(row rowScanner) (model.IntakeLog, error) {
	var l model.IntakeLog
	var note sql.NullString
	if err := row.Scan(&l.ID, &l.UserID, &l.DateTime, &l.AmountMl, &l.Source, &note, &l.CreatedAt); err != nil {
		return model.IntakeLog{}, err
	}
	l.Note = nullStringValue(note)
	return l, nil
}

// Create は摂取記録を作成する。
func (r *PostgresIntakeRepo) Create(ctx context.Context, l *model.IntakeLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO intake_logs (`+intakeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.UserID, l.DateTime, l.AmountMl, l.Source, nullString(l.Note), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("摂取記録の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの摂取記録を取得する。見つからない場合はnilを返す。
func (r *PostgresIntakeRepo) FindByID(ctx context.Context, id string) (*model.IntakeLog, error) {
	l, err := scanIntake(r.db.QueryRowContext(ctx,
		`SELECT `+intakeColumns+` FROM intake_logs WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("摂取記録の取得に失敗しました: %w", err)
	}
	return &l, nil
}

// Delete はユーザーの摂取記録を削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresIntakeRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM intake_logs WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("摂取記録の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBetween は [from, to) の摂取記録をdate_time昇順で返す。
func (r *PostgresIntakeRepo) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+intakeColumns+`
		 FROM intake_logs
		 WHERE user_id = $1 AND date_time >= $2 AND date_time < $3
		 ORDER BY date_time ASC, created_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("摂取記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	logs := []model.IntakeLog{}
	for rows.Next() {
		l, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("摂取記録の読み取りに失敗しました: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("摂取記録一覧の走査に失敗しました: %w", err)
	}
	return logs, nil
}

// SumBetween は [from, to) の摂取量の合計を返す。
func (r *PostgresIntakeRepo) SumBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_ml), 0)
		 FROM intake_logs
		 WHERE user_id = $1 AND date_time >= $2 AND date_time < $3`,
		userID, from, to,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("摂取量の集計に失敗しました: %w", err)
	}
	return total, nil
}

// DeleteOlderThan はbefore以前の摂取記録を削除し、削除件数を返す。
func (r *PostgresIntakeRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM intake_logs WHERE date_time < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古い摂取記録の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ IntakeRepository = (*PostgresIntakeRepo)(nil)
