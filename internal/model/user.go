// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// デバイス登録時に匿名ユーザーとして作成される。
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Platform はデバイスのプラットフォームを表す。
type Platform string

const (
	// PlatformIOS はiOSデバイス。
	PlatformIOS Platform = "ios"
	// PlatformAndroid はAndroidデバイス。
	PlatformAndroid Platform = "android"
)

// Valid はプラットフォームが既知の値かを返す。
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Device はユーザーに紐づく端末を表す。
// PushTokenはExpoのプッシュトークン（ExponentPushToken[...]）。
// NotificationsEnabledはアプリが報告したOSの通知許可状態。
type Device struct {
	ID                   string
	UserID               string
	Platform             Platform
	PushToken            string
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CanReceivePush はプッシュ通知を配信可能なデバイスかを返す。
func (d *Device) CanReceivePush() bool {
	return d.NotificationsEnabled && d.PushToken != ""
}
