package reminder

import (
	"fmt"
	"time"

	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
)

// Message は通知のタイトルと本文。
type Message struct {
	Title string
	Body  string
}

type catalog struct {
	title         string
	prefixBehind  string
	prefixAhead   string
	prefixOnTrack string
	suggestion    string // 提案量を埋め込む
	next          string // 間隔と時刻を埋め込む
	nextNoTime    string
	snoozeInitial string
	snooze        []string
	minutes       string
	hours         string
	hoursMinutes  string
}

var catalogs = map[model.Language]catalog{
	model.LanguageJa: {
		title:         "💧 水分補給リマインダー",
		prefixBehind:  "ちょっとペース遅め。",
		prefixAhead:   "今のペースなら少しゆっくりでOK。",
		prefixOnTrack: "いいペースです。",
		suggestion:    "いま %s いきますか？",
		next:          "次は%s（%s頃）を予定しています。",
		nextNoTime:    "次は%sを予定しています。",
		snoozeInitial: "水分補給の時間です！%s どうですか？",
		snooze: []string{
			"まだ飲んでいませんね。今のうちに一杯どう？",
			"水分補給を忘れるとペースが遅れます。少しでも飲んでみましょう",
			"今日は残りの目標が気になりますよ。ここで200ml補給しませんか？",
			"そろそろ本気で飲まないと遅れます。軽くでも口を潤して！",
			"これが最後のリマインドです。今飲んでおくと今日が楽になります",
		},
		minutes:      "%d分後",
		hours:        "%d時間後",
		hoursMinutes: "%d時間%d分後",
	},
	model.LanguageEn: {
		title:         "💧 Hydration reminder",
		prefixBehind:  "You're a little behind. ",
		prefixAhead:   "You're ahead of pace, so you can slow down a bit. ",
		prefixOnTrack: "Nice pace. ",
		suggestion:    "How about %s now?",
		next:          "Next reminder %s (around %s).",
		nextNoTime:    "Next reminder %s.",
		snoozeInitial: "Time to hydrate! How about %s?",
		snooze: []string{
			"Haven't had a drink yet? Grab a glass while you can.",
			"Skipping water puts you behind pace. Even a sip helps.",
			"Your remaining goal is piling up. How about 200ml right now?",
			"Time to get serious about drinking. At least wet your lips!",
			"This is the last reminder. A drink now makes the rest of today easier.",
		},
		minutes:      "in %d min",
		hours:        "in %d h",
		hoursMinutes: "in %d h %d min",
	},
}

func catalogFor(lang model.Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[model.LanguageJa]
}

// RenderPlanMessage は適応リマインダーの文面を組み立てる。
// nextAtがnilでない場合は次回予定時刻をlocの "HH:MM" で添える。
func RenderPlanMessage(plan hydration.PlanResult, lang model.Language, unit model.VolumeUnit, loc *time.Location) Message {
	c := catalogFor(lang)

	prefix := c.prefixOnTrack
	switch plan.PaceCategory {
	case model.PaceBehind:
		prefix = c.prefixBehind
	case model.PaceAhead:
		prefix = c.prefixAhead
	}

	suggestion := fmt.Sprintf(c.suggestion, hydration.FormatVolume(plan.SuggestMl, unit))
	interval := formatInterval(c, plan.NextIntervalMin)
	next := fmt.Sprintf(c.nextNoTime, interval)
	if plan.NextAt != nil {
		next = fmt.Sprintf(c.next, interval, plan.NextAt.In(loc).Format("15:04"))
	}

	return Message{
		Title: c.title,
		Body:  prefix + suggestion + " " + next,
	}
}

// RenderSnoozeMessage はスヌーズ連続通知の文面を返す。
// 初回は提案量を含み、続く通知は回数に応じて段階的に強い文面になる（最後の文面は繰り返す）。
func RenderSnoozeMessage(slot hydration.SnoozeSlot, suggestMl int, lang model.Language, unit model.VolumeUnit) Message {
	c := catalogFor(lang)
	if slot.Kind == model.KindInitial {
		return Message{
			Title: c.title,
			Body:  fmt.Sprintf(c.snoozeInitial, hydration.FormatVolume(suggestMl, unit)),
		}
	}
	i := min(max(slot.SnoozeCount-1, 0), len(c.snooze)-1)
	return Message{Title: c.title, Body: c.snooze[i]}
}

// formatInterval は分数を "N分後" / "H時間後" / "H時間M分後" の形に整える。
func formatInterval(c catalog, minutes int) string {
	minutes = max(1, minutes)
	if minutes < 60 {
		return fmt.Sprintf(c.minutes, minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf(c.hours, h)
	}
	return fmt.Sprintf(c.hoursMinutes, h, m)
}
