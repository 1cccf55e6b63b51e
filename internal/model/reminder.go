package model

import "time"

// PaceCategory は目標に対する摂取ペースの区分。
type PaceCategory string

const (
	PaceBehind  PaceCategory = "behind"
	PaceOnTrack PaceCategory = "onTrack"
	PaceAhead   PaceCategory = "ahead"
)

// ReminderStream はリマインダーの系列。再スケジュール時は系列単位で取り消す。
type ReminderStream string

const (
	// StreamAdaptive はプランナーが決める次回リマインダーの系列。
	StreamAdaptive ReminderStream = "adaptive"
	// StreamSnooze はスヌーズ連続通知の系列。
	StreamSnooze ReminderStream = "snooze"
)

// ReminderKind はリマインダーの種類。
type ReminderKind string

const (
	KindAdaptive ReminderKind = "adaptive"
	KindInitial  ReminderKind = "initial"
	KindSnooze   ReminderKind = "snooze"
)

// ReminderStatus は配信状態を表す。
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSending   ReminderStatus = "sending"
	ReminderSent      ReminderStatus = "sent"
	ReminderCancelled ReminderStatus = "cancelled"
	ReminderFailed    ReminderStatus = "failed"
)

// Reminder は配信待ちまたは配信済みの通知（アウトボックスの1行）を表す。
type Reminder struct {
	ID           string
	UserID       string
	Stream       ReminderStream
	Kind         ReminderKind
	SequenceID   string
	SnoozeCount  int
	FireAt       time.Time
	ScheduledAt  time.Time // 最初の配信予定時刻。再試行でFireAtが進んでも変わらない
	SuggestMl    int
	PaceCategory PaceCategory
	Title        string
	Body         string
	Status       ReminderStatus
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
