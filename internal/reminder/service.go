// Package reminder は進捗の変化に応じてリマインダーを再計画し、配信待ちとして登録する。
//
// 再計画は「スナップショット取得 → 通知可否の確認 → 計画 → 取消と登録」の順に
// ユーザー単位の排他区間で行う。登録されたリマインダーは配信ワーカーが送信する。
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/notify"
	"github.com/hitoshi/hydrate/internal/profile"
	"github.com/hitoshi/hydrate/internal/repository"
)

// Reason はリマインダーを登録しなかった理由。
type Reason string

const (
	ReasonGoalMet               Reason = "goal_met"
	ReasonDayOver               Reason = "day_over"
	ReasonPastSleep             Reason = "past_sleep"
	ReasonNotificationsDisabled Reason = "notifications_disabled"
)

// rescheduledStreams は進捗の変化で無効になる系列。
var rescheduledStreams = []model.ReminderStream{model.StreamAdaptive, model.StreamSnooze}

// DayProvider は今日の時間窓と目標を返すインターフェース。
type DayProvider interface {
	Today(ctx context.Context, userID string, now time.Time) (*profile.Day, error)
}

// IntakeSummer は期間内の摂取量の合計を返すインターフェース。
type IntakeSummer interface {
	SumBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// EventPublisher は接続中のアプリにイベントを配信するインターフェース。
type EventPublisher interface {
	Publish(userID string, ev notify.Event) int
}

// MetricsRecorder は計画結果のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordPlan(outcome string, pace string, suggestMl int)
}

// Snapshot は計画の入力となる現在の状態。
type Snapshot struct {
	Now        time.Time
	Day        *profile.Day
	ConsumedMl int
	Settings   *model.Settings
	Devices    []*model.Device
}

// PlanContext はスナップショットからプランナーへの入力を組み立てる。
func (s *Snapshot) PlanContext() hydration.PlanContext {
	return hydration.PlanContext{
		TargetMl:      s.Day.Goal.TargetMl,
		ConsumedMl:    s.ConsumedMl,
		Wake:          s.Day.Window.Wake,
		Sleep:         s.Day.Window.Sleep,
		Now:           s.Now,
		ReminderCount: s.Settings.ReminderCount,
		SnoozeMinutes: s.Settings.FixedIntervalMin,
	}
}

// HasChannel は通知を届けられるチャネルが1つ以上あるかを返す。
func (s *Snapshot) HasChannel() bool {
	if s.Settings.WebhookURL != "" {
		return true
	}
	for _, d := range s.Devices {
		if d.CanReceivePush() {
			return true
		}
	}
	return false
}

// Outcome は再計画の結果。Scheduledがfalseの場合はReasonに理由が入る。
type Outcome struct {
	Scheduled bool
	Reason    Reason
	Plan      hydration.PlanResult
	Reminder  *model.Reminder
	Cancelled int64
}

// SnoozeOutcome はスヌーズ連続通知の登録結果。
type SnoozeOutcome struct {
	Scheduled bool
	Reason    Reason
	Reminders []*model.Reminder
	Cancelled int64
}

// Service はリマインダーの計画と登録を行う。
type Service struct {
	days         DayProvider
	intake       IntakeSummer
	settingsRepo repository.SettingsRepository
	deviceRepo   repository.DeviceRepository
	reminderRepo repository.ReminderRepository
	publisher    EventPublisher
	metrics      MetricsRecorder
	logger       *slog.Logger
	locks        *keyedMutex
	now          func() time.Time
}

// NewService はServiceを生成する。publisherとmetricsはnilでもよい。
func NewService(
	days DayProvider,
	intake IntakeSummer,
	settingsRepo repository.SettingsRepository,
	deviceRepo repository.DeviceRepository,
	reminderRepo repository.ReminderRepository,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		days:         days,
		intake:       intake,
		settingsRepo: settingsRepo,
		deviceRepo:   deviceRepo,
		reminderRepo: reminderRepo,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// Snapshot は現在時刻での計画の入力を取得する。
func (s *Service) Snapshot(ctx context.Context, userID string, now time.Time) (*Snapshot, error) {
	day, err := s.days.Today(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	from, to := day.Window.IntakeRange()
	consumed, err := s.intake.SumBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("摂取量の集計に失敗しました: %w", err)
	}

	st, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil {
		st = model.DefaultSettings(userID)
	}

	devices, err := s.deviceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("デバイスの取得に失敗しました: %w", err)
	}

	return &Snapshot{
		Now:        now,
		Day:        day,
		ConsumedMl: consumed,
		Settings:   st,
		Devices:    devices,
	}, nil
}

// Preview は現在の状態で計画だけを行い、登録はしない。
// 返すOutcomeのReminderは登録されるはずのリマインダーで、IDは空。
func (s *Service) Preview(ctx context.Context, userID string) (*Outcome, error) {
	snap, err := s.Snapshot(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	plan, err := hydration.PlanNextReminder(snap.PlanContext())
	if err != nil {
		return nil, err
	}

	out := &Outcome{Plan: plan}
	if plan.Terminal() {
		out.Reason = terminalReason(plan)
		return out, nil
	}
	out.Scheduled = true
	out.Reminder = s.buildAdaptive(userID, snap, plan)
	out.Reminder.ID = ""
	return out, nil
}

// Reschedule は進捗に合わせてリマインダーを再計画する。
//
//  1. スナップショットを取得する
//  2. 通知チャネルがなければ配信待ちを取り消して終了する
//  3. 次のリマインダーを計画する
//  4. 適応・スヌーズ系列の配信待ちを取り消し、計画したリマインダーを登録する
//  5. 接続中のアプリに計画を通知する
func (s *Service) Reschedule(ctx context.Context, userID string) (*Outcome, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	snap, err := s.Snapshot(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	out, err := s.ensurePermission(ctx, userID, snap)
	if err != nil || out != nil {
		return out, err
	}

	plan, err := hydration.PlanNextReminder(snap.PlanContext())
	if err != nil {
		return nil, err
	}

	out, err = s.replace(ctx, userID, snap, plan)
	if err != nil {
		return nil, err
	}

	s.report(userID, out)
	return out, nil
}

// Refresh はRescheduleを実行し、失敗はログに記録するだけにする。
// 摂取記録や設定の更新自体は再計画の成否に関わらず成功として扱う。
func (s *Service) Refresh(ctx context.Context, userID string) {
	out, err := s.Reschedule(ctx, userID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProfileNotFound {
			s.logger.Debug("プロフィール未登録のため再計画を省略しました",
				slog.String("user_id", userID),
			)
			return
		}
		s.logger.Error("リマインダーの再計画に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	attrs := []any{
		slog.String("user_id", userID),
		slog.Bool("scheduled", out.Scheduled),
		slog.Int64("cancelled", out.Cancelled),
	}
	if out.Scheduled {
		attrs = append(attrs,
			slog.Time("fire_at", out.Reminder.FireAt),
			slog.Int("suggest_ml", out.Reminder.SuggestMl),
		)
	} else {
		attrs = append(attrs, slog.String("reason", string(out.Reason)))
	}
	s.logger.Info("リマインダーを再計画しました", attrs...)
}

// Snooze は現在時刻を基準にスヌーズ連続通知を登録する。
// 既存のスヌーズ系列だけを置き換え、適応リマインダーには触れない。
func (s *Service) Snooze(ctx context.Context, userID string) (*SnoozeOutcome, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	snap, err := s.Snapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !snap.HasChannel() {
		return &SnoozeOutcome{Reason: ReasonNotificationsDisabled}, nil
	}

	plan, err := hydration.PlanNextReminder(snap.PlanContext())
	if err != nil {
		return nil, err
	}
	switch plan.Outcome() {
	case hydration.OutcomeGoalMet, hydration.OutcomeDayOver:
		return &SnoozeOutcome{Reason: terminalReason(plan)}, nil
	}

	slots := hydration.PlanSnoozeBurst(now, hydration.SnoozeOptions{
		Frequency:       snap.Settings.Frequency,
		IntervalMinutes: snap.Settings.SnoozeMinutes,
		Sleep:           snap.Day.Window.Sleep,
	})
	if len(slots) == 0 {
		return &SnoozeOutcome{Reason: ReasonPastSleep}, nil
	}

	sequenceID := uuid.New().String()
	reminders := make([]*model.Reminder, len(slots))
	for i, slot := range slots {
		msg := RenderSnoozeMessage(slot, plan.SuggestMl, snap.Settings.Language, snap.Settings.Units)
		reminders[i] = newReminder(userID, model.StreamSnooze, slot.Kind, sequenceID, slot.At, now, msg)
		reminders[i].SnoozeCount = slot.SnoozeCount
		reminders[i].SuggestMl = plan.SuggestMl
		reminders[i].PaceCategory = plan.PaceCategory
	}

	cancelled, err := s.reminderRepo.ReplacePending(ctx, userID, []model.ReminderStream{model.StreamSnooze}, reminders)
	if err != nil {
		return nil, fmt.Errorf("スヌーズの登録に失敗しました: %w", err)
	}

	s.logger.Info("スヌーズを登録しました",
		slog.String("user_id", userID),
		slog.String("sequence_id", sequenceID),
		slog.Int("count", len(reminders)),
	)

	return &SnoozeOutcome{Scheduled: true, Reminders: reminders, Cancelled: cancelled}, nil
}

// Pending は配信待ちのリマインダーを返す。
func (s *Service) Pending(ctx context.Context, userID string) ([]*model.Reminder, error) {
	reminders, err := s.reminderRepo.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("配信待ちリマインダーの取得に失敗しました: %w", err)
	}
	return reminders, nil
}

// ensurePermission は通知チャネルがない場合に適応系列を取り消し、終了結果を返す。
// チャネルがある場合はnilを返す。
func (s *Service) ensurePermission(ctx context.Context, userID string, snap *Snapshot) (*Outcome, error) {
	if snap.HasChannel() {
		return nil, nil
	}
	cancelled, err := s.reminderRepo.ReplacePending(ctx, userID, []model.ReminderStream{model.StreamAdaptive}, nil)
	if err != nil {
		return nil, fmt.Errorf("配信待ちリマインダーの取り消しに失敗しました: %w", err)
	}
	out := &Outcome{Reason: ReasonNotificationsDisabled, Cancelled: cancelled}
	if s.metrics != nil {
		s.metrics.RecordPlan(string(ReasonNotificationsDisabled), "none", 0)
	}
	return out, nil
}

// replace は既存の配信待ちを取り消し、計画が続く場合は次のリマインダーを登録する。
func (s *Service) replace(ctx context.Context, userID string, snap *Snapshot, plan hydration.PlanResult) (*Outcome, error) {
	out := &Outcome{Plan: plan}
	var reminders []*model.Reminder
	if plan.Terminal() {
		out.Reason = terminalReason(plan)
	} else {
		out.Scheduled = true
		out.Reminder = s.buildAdaptive(userID, snap, plan)
		reminders = []*model.Reminder{out.Reminder}
	}

	cancelled, err := s.reminderRepo.ReplacePending(ctx, userID, rescheduledStreams, reminders)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの登録に失敗しました: %w", err)
	}
	out.Cancelled = cancelled
	return out, nil
}

func (s *Service) buildAdaptive(userID string, snap *Snapshot, plan hydration.PlanResult) *model.Reminder {
	msg := RenderPlanMessage(plan, snap.Settings.Language, snap.Settings.Units, snap.Day.Location)
	r := newReminder(userID, model.StreamAdaptive, model.KindAdaptive, uuid.New().String(), *plan.NextAt, snap.Now, msg)
	r.SuggestMl = plan.SuggestMl
	r.PaceCategory = plan.PaceCategory
	return r
}

// report は計画結果をメトリクスに記録し、接続中のアプリに配信する。
func (s *Service) report(userID string, out *Outcome) {
	outcome := string(out.Plan.Outcome())
	if s.metrics != nil {
		s.metrics.RecordPlan(outcome, string(out.Plan.PaceCategory), out.Plan.SuggestMl)
	}
	if s.publisher == nil {
		return
	}

	payload := map[string]any{
		"scheduled":    out.Scheduled,
		"outcome":      outcome,
		"suggestMl":    out.Plan.SuggestMl,
		"paceCategory": out.Plan.PaceCategory,
		"intervalMin":  out.Plan.NextIntervalMin,
		"remainMl":     out.Plan.RemainMl,
	}
	if out.Scheduled {
		payload["nextAt"] = out.Reminder.FireAt
		payload["reminderId"] = out.Reminder.ID
	} else {
		payload["reason"] = out.Reason
	}
	s.publisher.Publish(userID, notify.Event{Type: notify.EventPlan, Payload: payload})
}

func terminalReason(plan hydration.PlanResult) Reason {
	switch plan.Outcome() {
	case hydration.OutcomeGoalMet:
		return ReasonGoalMet
	case hydration.OutcomeDayOver:
		return ReasonDayOver
	default:
		return ReasonPastSleep
	}
}

func newReminder(
	userID string,
	stream model.ReminderStream,
	kind model.ReminderKind,
	sequenceID string,
	fireAt, now time.Time,
	msg Message,
) *model.Reminder {
	return &model.Reminder{
		ID:          uuid.New().String(),
		UserID:      userID,
		Stream:      stream,
		Kind:        kind,
		SequenceID:  sequenceID,
		FireAt:      fireAt.UTC(),
		ScheduledAt: fireAt.UTC(),
		Title:       msg.Title,
		Body:        msg.Body,
		Status:      model.ReminderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
