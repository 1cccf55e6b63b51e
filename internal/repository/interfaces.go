// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/hydrate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithDevice はユーザーと最初のデバイスを同一トランザクションで作成する。
	CreateWithDevice(ctx context.Context, user *model.User, device *model.Device) error

	// DeleteByID は指定IDのユーザーを削除する。
	// デバイス、プロフィール、目標、設定、摂取記録、リマインダーはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// DeviceRepository は端末情報の永続化インターフェース。
type DeviceRepository interface {
	// FindByID は指定IDのデバイスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Device, error)

	// ListByUserID はユーザーの全デバイスを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Device, error)

	// Update はプッシュトークンと通知許可状態を更新する。
	// 同じプッシュトークンを持つ他のデバイスからはトークンを外す。
	Update(ctx context.Context, device *model.Device) error

	// ClearPushToken は配信不能になったプッシュトークンをデバイスから外す。
	ClearPushToken(ctx context.Context, pushToken string) error
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーのプロフィールを取得する。未登録の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// Upsert はプロフィールを作成または更新する。
	Upsert(ctx context.Context, profile *model.UserProfile) error
}

// GoalRepository は日ごとの目標摂取量の永続化インターフェース。
type GoalRepository interface {
	// FindByUserAndDate は指定日の目標を取得する。見つからない場合はnilを返す。
	FindByUserAndDate(ctx context.Context, userID, date string) (*model.DailyGoal, error)

	// Upsert は目標を作成または上書きする。
	Upsert(ctx context.Context, goal *model.DailyGoal) error
}

// SettingsRepository はユーザー設定の永続化インターフェース。
type SettingsRepository interface {
	// FindByUserID はユーザーの設定を取得する。未作成の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Settings, error)

	// Upsert は設定を作成または更新する。
	Upsert(ctx context.Context, settings *model.Settings) error
}

// IntakeRepository は摂取記録の永続化インターフェース。
type IntakeRepository interface {
	// Create は摂取記録を作成する。
	Create(ctx context.Context, log *model.IntakeLog) error

	// FindByID は指定IDの摂取記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.IntakeLog, error)

	// Delete はユーザーの摂取記録を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)

	// ListBetween は [from, to) の摂取記録をdate_time昇順で返す。
	ListBetween(ctx context.Context, userID string, from, to time.Time) ([]model.IntakeLog, error)

	// SumBetween は [from, to) の摂取量の合計を返す。
	SumBetween(ctx context.Context, userID string, from, to time.Time) (int, error)

	// DeleteOlderThan はbefore以前の摂取記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ReminderRepository はリマインダー（配信アウトボックス）の永続化インターフェース。
type ReminderRepository interface {
	// ReplacePending は指定系列の配信待ち・送信中リマインダーを取り消し、新しいリマインダーを登録する。
	// ユーザー単位のアドバイザリロックを取得した同一トランザクション内で行う。
	// 取り消した件数を返す。
	ReplacePending(ctx context.Context, userID string, streams []model.ReminderStream, reminders []*model.Reminder) (int64, error)

	// ListPending はユーザーの配信待ちリマインダーをfire_at昇順で返す。
	ListPending(ctx context.Context, userID string) ([]*model.Reminder, error)

	// ClaimDue はfire_at <= now の配信待ちリマインダーを最大limit件取得し、送信中にする。
	// FOR UPDATE SKIP LOCKEDで複数ワーカー間の重複取得を防ぎ、試行回数を1増やす。
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Reminder, error)

	// MarkSent は送信済みにする。
	// Mark系はいずれも送信中の行だけを更新し、取り消し済みならErrSupersededを返す。
	MarkSent(ctx context.Context, id string) error

	// MarkRetry は次回の試行時刻を設定して配信待ちに戻す。
	MarkRetry(ctx context.Context, id string, nextAt time.Time, lastError string) error

	// MarkFailed は配信失敗として確定する。
	MarkFailed(ctx context.Context, id string, lastError string) error

	// ReleaseStale はstaleBefore以前から送信中のままのリマインダーを配信待ちに戻す。
	ReleaseStale(ctx context.Context, staleBefore time.Time) (int64, error)

	// DeleteFinishedBefore はbefore以前に確定（送信済み・取消・失敗）したリマインダーを削除する。
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}
