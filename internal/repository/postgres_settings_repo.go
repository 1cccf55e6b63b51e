package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// FindByUserID はユーザーの設定を取得する。未作成の場合はnilを返す。
func (r *PostgresSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	s := &model.Settings{}
	var presets []int64
	var fixedInterval sql.NullInt64
	var webhookURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, units, preset_ml, reminder_count, fixed_interval_min,
		        snooze_minutes, frequency, language, webhook_url, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(
		&s.UserID, &s.Units, pq.Array(&presets), &s.ReminderCount, &fixedInterval,
		&s.SnoozeMinutes, &s.Frequency, &s.Language, &webhookURL, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	s.PresetMl = fromInt64s(presets)
	s.FixedIntervalMin = nullIntValue(fixedInterval)
	s.WebhookURL = nullStringValue(webhookURL)
	return s, nil
}

// Upsert は設定を作成または更新する。
func (r *PostgresSettingsRepo) Upsert(ctx context.Context, s *model.Settings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, units, preset_ml, reminder_count, fixed_interval_min,
		                            snooze_minutes, frequency, language, webhook_url, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     units = EXCLUDED.units,
		     preset_ml = EXCLUDED.preset_ml,
		     reminder_count = EXCLUDED.reminder_count,
		     fixed_interval_min = EXCLUDED.fixed_interval_min,
		     snooze_minutes = EXCLUDED.snooze_minutes,
		     frequency = EXCLUDED.frequency,
		     language = EXCLUDED.language,
		     webhook_url = EXCLUDED.webhook_url,
		     updated_at = EXCLUDED.updated_at`,
		s.UserID, s.Units, pq.Array(toInt64s(s.PresetMl)), s.ReminderCount, nullIntPtr(s.FixedIntervalMin),
		s.SnoozeMinutes, s.Frequency, s.Language, nullString(s.WebhookURL), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return nil
}

func toInt64s(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s(values []int64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
