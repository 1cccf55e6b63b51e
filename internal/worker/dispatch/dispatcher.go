// Package dispatch は配信待ちリマインダーのバックグラウンド配信処理を提供する。
// ティッカーで期限の来たリマインダーを取得し、プッシュ通知・WebSocket・Webhookへ送信する。
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/notify"
	"github.com/hitoshi/hydrate/internal/repository"
)

// 配信チャネル名。メトリクスのラベルに使う。
const (
	ChannelPush     = "push"
	ChannelRealtime = "realtime"
	ChannelWebhook  = "webhook"
)

// PushSender はExpoプッシュ通知の送信インターフェース。
type PushSender interface {
	Send(ctx context.Context, messages []notify.PushMessage) ([]notify.PushTicket, error)
}

// WebhookSender はWebhookの送信インターフェース。
type WebhookSender interface {
	Send(ctx context.Context, url string, payload notify.WebhookPayload) error
}

// EventPublisher は接続中のアプリへの配信インターフェース。
type EventPublisher interface {
	Publish(userID string, ev notify.Event) int
}

// MetricsRecorder は配信メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordRemindersClaimed(count int)
	RecordDelivery(channel string, success bool)
	RecordReminderFailed()
	RecordDispatchLatency(duration time.Duration)
}

// Config は配信ワーカーの設定。
type Config struct {
	// BatchSize は1サイクルで取得する最大件数。
	BatchSize int
	// MaxConcurrency は同時に配信するリマインダー数。
	MaxConcurrency int
	// MaxAttempts は配信失敗として確定するまでの試行回数。
	MaxAttempts int
	// StaleAfter は送信中のまま放置されたリマインダーを配信待ちに戻すまでの時間。
	StaleAfter time.Duration
}

// Dispatcher は配信待ちリマインダーの取得と配信を行う。
type Dispatcher struct {
	reminderRepo repository.ReminderRepository
	deviceRepo   repository.DeviceRepository
	settingsRepo repository.SettingsRepository
	push         PushSender
	webhook      WebhookSender
	publisher    EventPublisher
	metrics      MetricsRecorder
	logger       *slog.Logger
	cfg          Config
	now          func() time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// ゼロ値の設定項目にはデフォルト値（100件、並列10、試行5回、5分）を使用する。
func NewDispatcher(
	reminderRepo repository.ReminderRepository,
	deviceRepo repository.DeviceRepository,
	settingsRepo repository.SettingsRepository,
	push PushSender,
	webhook WebhookSender,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	return &Dispatcher{
		reminderRepo: reminderRepo,
		deviceRepo:   deviceRepo,
		settingsRepo: settingsRepo,
		push:         push,
		webhook:      webhook,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Start はティッカーで配信サイクルを繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("配信ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", d.cfg.BatchSize),
		slog.Int("max_concurrency", d.cfg.MaxConcurrency),
	)

	// 起動直後に1回実行
	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error("配信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("配信ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				d.logger.Error("配信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限の来たリマインダーを取得し、並列で配信する。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := d.now()

	released, err := d.reminderRepo.ReleaseStale(ctx, start.Add(-d.cfg.StaleAfter))
	if err != nil {
		return fmt.Errorf("送信中リマインダーの回収に失敗しました: %w", err)
	}
	if released > 0 {
		d.logger.Warn("送信中のまま残っていたリマインダーを配信待ちに戻しました",
			slog.Int64("count", released),
		)
	}

	reminders, err := d.reminderRepo.ClaimDue(ctx, start, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("配信対象の取得に失敗しました: %w", err)
	}
	if d.metrics != nil {
		d.metrics.RecordRemindersClaimed(len(reminders))
	}
	if len(reminders) == 0 {
		return nil
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, d.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for _, r := range reminders {
		wg.Add(1)
		sem <- struct{}{}

		go func(r *model.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := d.Deliver(ctx, r); err != nil {
				d.logger.Error("リマインダーの状態更新に失敗しました",
					slog.String("reminder_id", r.ID),
					slog.String("user_id", r.UserID),
					slog.String("error", err.Error()),
				)
			}
		}(r)
	}

	wg.Wait()

	d.logger.Info("配信サイクルが完了しました",
		slog.Int("reminder_count", len(reminders)),
		slog.Float64("duration_ms", float64(d.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Deliver は1件のリマインダーをユーザーの全チャネルに送信し、結果に応じて状態を更新する。
// いずれかのチャネルで届けば送信済み、すべて失敗した場合は再試行または失敗として確定する。
// 配信中に再スケジュールで取り消されていた場合は取り消しのまま残す。
// 返すエラーは状態更新の失敗のみ。
func (d *Dispatcher) Deliver(ctx context.Context, r *model.Reminder) error {
	var delivered bool
	var errs []error

	ok, err := d.deliverPush(ctx, r)
	delivered = delivered || ok
	errs = append(errs, err)

	delivered = d.deliverRealtime(r) || delivered

	ok, err = d.deliverWebhook(ctx, r)
	delivered = delivered || ok
	errs = append(errs, err)

	now := d.now()
	if delivered {
		if d.metrics != nil {
			d.metrics.RecordDispatchLatency(now.Sub(scheduledAt(r)))
		}
		return d.settled(r, d.reminderRepo.MarkSent(ctx, r.ID))
	}

	reason := "配信可能なチャネルがありません"
	if err := errors.Join(errs...); err != nil {
		reason = truncate(err.Error(), 500)
	}

	if next, retry := NextRetry(r, now, d.cfg.MaxAttempts); retry {
		d.logger.Warn("リマインダーの配信に失敗したため再試行します",
			slog.String("reminder_id", r.ID),
			slog.Int("attempts", r.Attempts),
			slog.Time("next_at", next),
			slog.String("error", reason),
		)
		return d.settled(r, d.reminderRepo.MarkRetry(ctx, r.ID, next, reason))
	}

	d.logger.Error("リマインダーの配信を断念しました",
		slog.String("reminder_id", r.ID),
		slog.String("user_id", r.UserID),
		slog.Int("attempts", r.Attempts),
		slog.String("error", reason),
	)
	if d.metrics != nil {
		d.metrics.RecordReminderFailed()
	}
	return d.settled(r, d.reminderRepo.MarkFailed(ctx, r.ID, reason))
}

// settled は状態更新の結果を返す。再スケジュールで取り消し済みだった場合はエラーにしない。
func (d *Dispatcher) settled(r *model.Reminder, err error) error {
	if errors.Is(err, repository.ErrSuperseded) {
		d.logger.Info("配信中のリマインダーは再スケジュールで取り消されていました",
			slog.String("reminder_id", r.ID),
			slog.String("user_id", r.UserID),
		)
		return nil
	}
	return err
}

// deliverPush は通知可能な全デバイスへプッシュ通知を送る。
// 無効になったプッシュトークンはデバイスから外す。
func (d *Dispatcher) deliverPush(ctx context.Context, r *model.Reminder) (bool, error) {
	if d.push == nil {
		return false, nil
	}
	devices, err := d.deviceRepo.ListByUserID(ctx, r.UserID)
	if err != nil {
		return false, fmt.Errorf("デバイスの取得に失敗しました: %w", err)
	}

	var messages []notify.PushMessage
	for _, dev := range devices {
		if !dev.CanReceivePush() {
			continue
		}
		messages = append(messages, notify.PushMessage{
			To:        dev.PushToken,
			Title:     r.Title,
			Body:      r.Body,
			Sound:     "default",
			ChannelID: "hydration",
			Data: map[string]any{
				"reminderId": r.ID,
				"kind":       r.Kind,
				"suggestMl":  r.SuggestMl,
			},
		})
	}
	if len(messages) == 0 {
		return false, nil
	}

	tickets, err := d.push.Send(ctx, messages)
	if err != nil {
		d.recordDelivery(ChannelPush, false)
		return false, fmt.Errorf("push: %w", err)
	}

	var delivered bool
	var lastErr error
	for i, ticket := range tickets {
		d.recordDelivery(ChannelPush, ticket.OK())
		if ticket.OK() {
			delivered = true
			continue
		}
		lastErr = fmt.Errorf("push: %s %s", ticket.Details.Error, ticket.Message)
		if ticket.DeviceNotRegistered() {
			token := messages[i].To
			if err := d.deviceRepo.ClearPushToken(ctx, token); err != nil {
				d.logger.Error("無効なプッシュトークンの削除に失敗しました",
					slog.String("user_id", r.UserID),
					slog.String("error", err.Error()),
				)
				continue
			}
			d.logger.Info("無効なプッシュトークンを削除しました",
				slog.String("user_id", r.UserID),
			)
		}
	}
	if delivered {
		return true, nil
	}
	return false, lastErr
}

// deliverRealtime は接続中のアプリにリマインダーを配信する。
func (d *Dispatcher) deliverRealtime(r *model.Reminder) bool {
	if d.publisher == nil {
		return false
	}
	n := d.publisher.Publish(r.UserID, notify.Event{
		Type: notify.EventReminder,
		Payload: map[string]any{
			"reminderId":   r.ID,
			"kind":         r.Kind,
			"title":        r.Title,
			"body":         r.Body,
			"suggestMl":    r.SuggestMl,
			"paceCategory": r.PaceCategory,
			"fireAt":       r.FireAt,
		},
	})
	if n == 0 {
		return false
	}
	d.recordDelivery(ChannelRealtime, true)
	return true
}

// deliverWebhook はユーザーが設定したWebhook URLへ送信する。
func (d *Dispatcher) deliverWebhook(ctx context.Context, r *model.Reminder) (bool, error) {
	if d.webhook == nil {
		return false, nil
	}
	st, err := d.settingsRepo.FindByUserID(ctx, r.UserID)
	if err != nil {
		return false, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil || st.WebhookURL == "" {
		return false, nil
	}

	err = d.webhook.Send(ctx, st.WebhookURL, notify.WebhookPayload{
		Event:        notify.EventReminder,
		ReminderID:   r.ID,
		Kind:         string(r.Kind),
		Title:        r.Title,
		Body:         r.Body,
		SuggestMl:    r.SuggestMl,
		PaceCategory: string(r.PaceCategory),
		FireAt:       r.FireAt,
	})
	d.recordDelivery(ChannelWebhook, err == nil)
	if err != nil {
		return false, fmt.Errorf("webhook: %w", err)
	}
	return true, nil
}

func (d *Dispatcher) recordDelivery(channel string, success bool) {
	if d.metrics != nil {
		d.metrics.RecordDelivery(channel, success)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
