package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresGoalRepo はPostgreSQLを使用した目標摂取量リポジトリ。
type PostgresGoalRepo struct {
	db *sql.DB
}

// NewPostgresGoalRepo はPostgresGoalRepoを生成する。
func NewPostgresGoalRepo(db *sql.DB) *PostgresGoalRepo {
	return &PostgresGoalRepo{db: db}
}

// FindByUserAndDate は指定日の目標を取得する。見つからない場合はnilを返す。
// dateは "YYYY-MM-DD" 形式。
func (r *PostgresGoalRepo) FindByUserAndDate(ctx context.Context, userID, date string) (*model.DailyGoal, error) {
	g := &model.DailyGoal{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, date::text, target_ml, algorithm, manual_override, created_at, updated_at
		 FROM daily_goals WHERE user_id = $1 AND date = $2`,
		userID, date,
	).Scan(&g.UserID, &g.Date, &g.TargetMl, &g.Algorithm, &g.ManualOverride, &g.CreatedAt, &g.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	return g, nil
}

// Upsert は目標を作成または上書きする。
func (r *PostgresGoalRepo) Upsert(ctx context.Context, g *model.DailyGoal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_goals (user_id, date, target_ml, algorithm, manual_override, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		     target_ml = EXCLUDED.target_ml,
		     algorithm = EXCLUDED.algorithm,
		     manual_override = EXCLUDED.manual_override,
		     updated_at = EXCLUDED.updated_at`,
		g.UserID, g.Date, g.TargetMl, g.Algorithm, g.ManualOverride, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("目標の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ GoalRepository = (*PostgresGoalRepo)(nil)
