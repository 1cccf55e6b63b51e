package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

// PostgresDeviceRepo はPostgreSQLを使用したデバイスリポジトリ。
type PostgresDeviceRepo struct {
	db *sql.DB
}

// NewPostgresDeviceRepo はPostgresDeviceRepoを生成する。
func NewPostgresDeviceRepo(db *sql.DB) *PostgresDeviceRepo {
	return &PostgresDeviceRepo{db: db}
}

const deviceColumns = `id, user_id, platform, push_token, notifications_enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	device := &model.Device{}
	var pushToken sql.NullString
	if err := row.Scan(
		&device.ID, &device.UserID, &device.Platform, &pushToken,
		&device.NotificationsEnabled, &device.CreatedAt, &device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	device.PushToken = nullStringValue(pushToken)
	return device, nil
}

// FindByID は指定IDのデバイスを取得する。見つからない場合はnilを返す。
func (r *PostgresDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	device, err := scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デバイスの取得に失敗しました: %w", err)
	}
	return device, nil
}

// ListByUserID はユーザーの全デバイスを作成日時順に返す。
func (r *PostgresDeviceRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("デバイス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var devices []*model.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("デバイスの読み取りに失敗しました: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デバイス一覧の走査に失敗しました: %w", err)
	}

	return devices, nil
}

// Update はプッシュトークンと通知許可状態を更新する。
// 同じプッシュトークンを持つ他のデバイスからはトークンを外す（端末の再インストール時など）。
func (r *PostgresDeviceRepo) Update(ctx context.Context, device *model.Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := releasePushToken(ctx, tx, device.PushToken, device.ID); err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE devices SET push_token = $2, notifications_enabled = $3, updated_at = $4
		 WHERE id = $1`,
		device.ID, nullString(device.PushToken), device.NotificationsEnabled, device.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("デバイスの更新に失敗しました: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device %s: %w", device.ID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearPushToken は配信不能になったプッシュトークンをデバイスから外す。
func (r *PostgresDeviceRepo) ClearPushToken(ctx context.Context, pushToken string) error {
	if pushToken == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET push_token = NULL, updated_at = now() WHERE push_token = $1`,
		pushToken,
	)
	if err != nil {
		return fmt.Errorf("プッシュトークンの無効化に失敗しました: %w", err)
	}
	return nil
}

// releasePushToken は指定デバイス以外が持つ同じプッシュトークンを外す。
func releasePushToken(ctx context.Context, tx *sql.Tx, pushToken, exceptDeviceID string) error {
	if pushToken == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE devices SET push_token = NULL, updated_at = now()
		 WHERE push_token = $1 AND id <> $2`,
		pushToken, exceptDeviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to release push token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DeviceRepository = (*PostgresDeviceRepo)(nil)
