package model

import "time"

// Sex は性別を表す。目標量の計算には使用しない。
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// Valid は性別が既知の値かを返す。
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// ActivityLevel は活動量を表す。
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// Valid は活動量が既知の値かを返す。
func (a ActivityLevel) Valid() bool {
	switch a {
	case ActivityLow, ActivityMedium, ActivityHigh:
		return true
	}
	return false
}

// UserProfile はユーザーの身体情報と生活リズムを表す。
// WakeTime・SleepTimeは "HH:MM" 形式、TimezoneはIANAタイムゾーン名。
type UserProfile struct {
	UserID        string
	WeightKg      float64
	Sex           Sex
	HeightCm      *float64
	ActivityLevel ActivityLevel
	WakeTime      string
	SleepTime     string
	Timezone      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GoalAlgorithm は目標量の算出方法を表す。
type GoalAlgorithm string

const (
	// GoalAlgorithmV1 は体重と活動量による計算式。
	GoalAlgorithmV1 GoalAlgorithm = "v1"
	// GoalAlgorithmManual はユーザーによる手動設定。
	GoalAlgorithmManual GoalAlgorithm = "manual"
)

// DailyGoal は日付ごとの目標摂取量（ml）を表す。
// Dateはユーザーのタイムゾーンにおける "YYYY-MM-DD"。
type DailyGoal struct {
	UserID         string
	Date           string
	TargetMl       int
	Algorithm      GoalAlgorithm
	ManualOverride bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VolumeUnit は表示単位を表す。
type VolumeUnit string

const (
	UnitMl VolumeUnit = "ml"
	UnitOz VolumeUnit = "oz"
)

// Valid は表示単位が既知の値かを返す。
func (u VolumeUnit) Valid() bool {
	return u == UnitMl || u == UnitOz
}

// Frequency は通知頻度を表す。スヌーズの回数と間隔を決める。
type Frequency string

const (
	FrequencyLow    Frequency = "low"
	FrequencyMedium Frequency = "medium"
	FrequencyHigh   Frequency = "high"
)

// Valid は通知頻度が既知の値かを返す。
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyLow, FrequencyMedium, FrequencyHigh:
		return true
	}
	return false
}

// Language は通知文言の言語を表す。
type Language string

const (
	LanguageJa Language = "ja"
	LanguageEn Language = "en"
)

// Valid は言語が既知の値かを返す。
func (l Language) Valid() bool {
	return l == LanguageJa || l == LanguageEn
}

// Settings はユーザーごとのアプリ設定を表す。
type Settings struct {
	UserID string
	Units  VolumeUnit
	// PresetMl はクイック記録ボタンの量。
	PresetMl []int
	// ReminderCount は1日を均等に区切るチェックポイント数。
	ReminderCount int
	// FixedIntervalMin が設定されている場合、適応間隔を置き換える（下限5分）。
	FixedIntervalMin *int
	// SnoozeMinutes はスヌーズ連続通知の間隔。
	SnoozeMinutes int
	Frequency     Frequency
	Language      Language
	WebhookURL    string
	UpdatedAt     time.Time
}

// DefaultSettings はユーザーの初期設定を返す。
func DefaultSettings(userID string) *Settings {
	return &Settings{
		UserID:        userID,
		Units:         UnitMl,
		PresetMl:      []int{100, 200, 300, 500},
		ReminderCount: 8,
		SnoozeMinutes: 15,
		Frequency:     FrequencyMedium,
		Language:      LanguageJa,
	}
}
