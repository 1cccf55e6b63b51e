package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID はユーザーのプロフィールを取得する。未登録の場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var heightCm sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, weight_kg, sex, height_cm, activity_level,
		        wake_time, sleep_time, timezone, created_at, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.WeightKg, &p.Sex, &heightCm, &p.ActivityLevel,
		&p.WakeTime, &p.SleepTime, &p.Timezone, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	p.HeightCm = nullFloatValue(heightCm)
	return p, nil
}

// Upsert はプロフィールを作成または更新する。created_atは初回作成時の値を維持する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, weight_kg, sex, height_cm, activity_level,
		                            wake_time, sleep_time, timezone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     weight_kg = EXCLUDED.weight_kg,
		     sex = EXCLUDED.sex,
		     height_cm = EXCLUDED.height_cm,
		     activity_level = EXCLUDED.activity_level,
		     wake_time = EXCLUDED.wake_time,
		     sleep_time = EXCLUDED.sleep_time,
		     timezone = EXCLUDED.timezone,
		     updated_at = EXCLUDED.updated_at`,
		p.UserID, p.WeightKg, p.Sex, nullFloatPtr(p.HeightCm), p.ActivityLevel,
		p.WakeTime, p.SleepTime, p.Timezone, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
