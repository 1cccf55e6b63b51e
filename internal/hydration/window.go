package hydration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock は日付を持たない時刻（時・分）を表す。
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock は "HH:MM"（時は1桁も可）形式の文字列をClockに変換する。
func ParseClock(s string) (Clock, error) {
	hourStr, minuteStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(minuteStr) != 2 || hourStr == "" || len(hourStr) > 2 {
		return Clock{}, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in clock %q", s)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in clock %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// String は "HH:MM" 形式を返す。
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On は指定日のlocにおけるこの時刻を返す。
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// DayWindow は1日の起床から就寝までの時間窓。Sleepは常にWakeより後。
type DayWindow struct {
	Wake  time.Time
	Sleep time.Time
}

// ResolveDayWindow はnow時点で有効な起床〜就寝の時間窓を求める。
//
// 起床日の起床時刻と就寝時刻を組み立て、就寝が起床以前なら翌日に繰り越す。
// 現在が今日の起床前であっても前日の窓がまだ続いている（就寝が日付を跨ぐ）場合は
// 前日の窓を返す。
func ResolveDayWindow(wake, sleep Clock, now time.Time, loc *time.Location) DayWindow {
	local := now.In(loc)
	today := windowOn(local, wake, sleep, loc)
	if local.Before(today.Wake) {
		yesterday := windowOn(local.AddDate(0, 0, -1), wake, sleep, loc)
		if local.Before(yesterday.Sleep) {
			return yesterday
		}
	}
	return today
}

func windowOn(day time.Time, wake, sleep Clock, loc *time.Location) DayWindow {
	w := wake.On(day, loc)
	s := sleep.On(day, loc)
	if !s.After(w) {
		s = s.AddDate(0, 0, 1)
	}
	return DayWindow{Wake: w, Sleep: s}
}

// DayKey は時間窓が属する日付（起床日、"YYYY-MM-DD"）を返す。
func (w DayWindow) DayKey() string {
	return w.Wake.Format(time.DateOnly)
}

// IntakeRange はこの時間窓の摂取量として集計する範囲 [from, to) を返す。
// 起床日の0時から、その日の終わりと就寝時刻の遅い方まで。
func (w DayWindow) IntakeRange() (time.Time, time.Time) {
	loc := w.Wake.Location()
	y, m, d := w.Wake.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)
	if w.Sleep.After(to) {
		to = w.Sleep
	}
	return from, to
}

// Contains は時刻tが時間窓 [Wake, Sleep) に含まれるかを返す。
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Wake) && t.Before(w.Sleep)
}
