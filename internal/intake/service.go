// Package intake は摂取記録の登録・取消・集計を提供する。
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/hydrate/internal/hydration"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/notify"
	"github.com/hitoshi/hydrate/internal/profile"
	"github.com/hitoshi/hydrate/internal/repository"
	"github.com/hitoshi/hydrate/internal/security"
)

const (
	// MaxAmountMl は1回の記録で受け付ける最大量。
	MaxAmountMl = 5000
	// MaxNoteLength はメモの最大文字数（ルーン数）。
	MaxNoteLength = 200

	defaultInsightDays = 7
	maxInsightDays     = 90

	// futureTolerance は端末時計のずれとして許容する未来方向の幅。
	futureTolerance = time.Minute
)

// DayProvider は今日の時間窓と目標を返すインターフェース。
type DayProvider interface {
	Today(ctx context.Context, userID string, now time.Time) (*profile.Day, error)
}

// Rescheduler はリマインダーの再計画を要求するインターフェース。
type Rescheduler interface {
	Refresh(ctx context.Context, userID string)
}

// EventPublisher は接続中のアプリにイベントを配信するインターフェース。
type EventPublisher interface {
	Publish(userID string, ev notify.Event) int
}

// MetricsRecorder は摂取記録のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordIntakeLogged(amountMl int)
}

// LogInput は摂取記録の入力。DateTimeがnilの場合は現在時刻を使う。
type LogInput struct {
	AmountMl int
	Source   model.IntakeSource
	Note     string
	DateTime *time.Time
}

// Summary は今日の摂取状況。
type Summary struct {
	Date     string
	Logs     []model.IntakeLog
	TotalMl  int
	TargetMl int
	RemainMl int
	// Progress は目標に対する達成率（0以上、目標超過時は1を超える）。
	Progress float64
}

// Insights は直近の摂取傾向。
type Insights struct {
	Days int
	From time.Time
	To   time.Time
	hydration.IntakeInsight
}

// Service は摂取記録のビジネスロジックを提供する。
type Service struct {
	intakeRepo  repository.IntakeRepository
	days        DayProvider
	sanitizer   security.NoteSanitizer
	rescheduler Rescheduler
	publisher   EventPublisher
	metrics     MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。publisherとmetricsはnilでもよい。
func NewService(
	intakeRepo repository.IntakeRepository,
	days DayProvider,
	sanitizer security.NoteSanitizer,
	rescheduler Rescheduler,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		intakeRepo:  intakeRepo,
		days:        days,
		sanitizer:   sanitizer,
		rescheduler: rescheduler,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Log は摂取記録を保存し、リマインダーを再計画する。
func (s *Service) Log(ctx context.Context, userID string, input LogInput) (*model.IntakeLog, error) {
	now := s.now()
	if input.AmountMl < 1 || input.AmountMl > MaxAmountMl {
		return nil, model.NewValidationError("amountMl", fmt.Sprintf("1から%dの範囲で指定してください", MaxAmountMl))
	}
	if input.Source == "" {
		input.Source = model.IntakeSourceQuick
	}
	if !input.Source.Valid() {
		return nil, model.NewValidationError("source", "quick または custom を指定してください")
	}
	dateTime := now
	if input.DateTime != nil {
		dateTime = *input.DateTime
		if dateTime.After(now.Add(futureTolerance)) {
			return nil, model.NewValidationError("dateTime", "未来の時刻は記録できません")
		}
	}
	note := s.sanitizer.Sanitize(input.Note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, model.NewValidationError("note", fmt.Sprintf("%d文字以内で入力してください", MaxNoteLength))
	}

	log := &model.IntakeLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		DateTime:  dateTime.UTC(),
		AmountMl:  input.AmountMl,
		Source:    input.Source,
		Note:      note,
		CreatedAt: now,
	}
	if err := s.intakeRepo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("摂取記録の保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordIntakeLogged(log.AmountMl)
	}
	s.logger.Info("摂取を記録しました",
		slog.String("user_id", userID),
		slog.String("intake_id", log.ID),
		slog.Int("amount_ml", log.AmountMl),
		slog.String("source", string(log.Source)),
	)

	s.publish(userID, "logged", map[string]any{
		"id":       log.ID,
		"amountMl": log.AmountMl,
		"dateTime": log.DateTime,
	})
	s.refresh(ctx, userID)
	return log, nil
}

// Delete は摂取記録を取り消し、リマインダーを再計画する。
func (s *Service) Delete(ctx context.Context, userID, intakeID string) error {
	if _, err := uuid.Parse(intakeID); err != nil {
		return model.NewIntakeNotFoundError(intakeID)
	}

	deleted, err := s.intakeRepo.Delete(ctx, userID, intakeID)
	if err != nil {
		return fmt.Errorf("摂取記録の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewIntakeNotFoundError(intakeID)
	}

	s.logger.Info("摂取記録を取り消しました",
		slog.String("user_id", userID),
		slog.String("intake_id", intakeID),
	)

	s.publish(userID, "deleted", map[string]any{"id": intakeID})
	s.refresh(ctx, userID)
	return nil
}

// Today は今日の摂取記録と目標に対する進捗を返す。
func (s *Service) Today(ctx context.Context, userID string) (*Summary, error) {
	day, err := s.days.Today(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	from, to := day.Window.IntakeRange()
	logs, err := s.intakeRepo.ListBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("摂取記録の取得に失敗しました: %w", err)
	}

	total := 0
	for _, l := range logs {
		total += l.AmountMl
	}
	target := day.Goal.TargetMl

	return &Summary{
		Date:     day.Window.DayKey(),
		Logs:     logs,
		TotalMl:  total,
		TargetMl: target,
		RemainMl: max(target-total, 0),
		Progress: progress(total, target),
	}, nil
}

// Insights は直近days日分の摂取記録から時間帯ごとの傾向を求める。
// daysが0の場合は7日分を対象にする。
func (s *Service) Insights(ctx context.Context, userID string, days int) (*Insights, error) {
	if days == 0 {
		days = defaultInsightDays
	}
	if days < 1 || days > maxInsightDays {
		return nil, model.NewValidationError("days", fmt.Sprintf("1から%dの範囲で指定してください", maxInsightDays))
	}

	day, err := s.days.Today(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	from, to := day.Window.IntakeRange()
	from = from.AddDate(0, 0, -(days - 1))

	logs, err := s.intakeRepo.ListBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("摂取記録の取得に失敗しました: %w", err)
	}

	return &Insights{
		Days:          days,
		From:          from,
		To:            to,
		IntakeInsight: hydration.AnalyzeIntake(logs, day.Location),
	}, nil
}

func (s *Service) publish(userID, action string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(userID, notify.Event{
		Type: notify.EventIntake,
		Payload: map[string]any{
			"action": action,
			"intake": payload,
		},
	})
}

func (s *Service) refresh(ctx context.Context, userID string) {
	if s.rescheduler != nil {
		s.rescheduler.Refresh(ctx, userID)
	}
}

// progress は達成率を小数第3位までに丸めて返す。
func progress(total, target int) float64 {
	if target <= 0 {
		return 0
	}
	return math.Round(float64(total)/float64(target)*1000) / 1000
}
