package model

import "time"

// IntakeSource は記録方法を表す。
type IntakeSource string

const (
	// IntakeSourceQuick はプリセットボタンからの記録。
	IntakeSourceQuick IntakeSource = "quick"
	// IntakeSourceCustom は任意量の記録。
	IntakeSourceCustom IntakeSource = "custom"
)

// Valid は記録方法が既知の値かを返す。
func (s IntakeSource) Valid() bool {
	return s == IntakeSourceQuick || s == IntakeSourceCustom
}

// IntakeLog は1回分の水分摂取記録を表す。作成後は変更しない。
type IntakeLog struct {
	ID        string
	UserID    string
	DateTime  time.Time
	AmountMl  int
	Source    IntakeSource
	Note      string
	CreatedAt time.Time
}
