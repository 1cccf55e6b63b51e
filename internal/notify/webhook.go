package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookPayload はユーザー指定URLへPOSTするJSON。
type WebhookPayload struct {
	Event        string    `json:"event"`
	ReminderID   string    `json:"reminder_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	SuggestMl    int       `json:"suggest_ml"`
	PaceCategory string    `json:"pace_category"`
	FireAt       time.Time `json:"fire_at"`
}

// WebhookSender はユーザー指定のWebhook URLへリマインダーを送信する。
// httpClientにはSSRF防止機能付きのクライアントを渡すこと。
type WebhookSender struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSender はWebhookSenderの新しいインスタンスを生成する。
func NewWebhookSender(httpClient *http.Client, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{httpClient: httpClient, logger: logger}
}

// Send はペイロードをPOSTする。2xx以外のステータスはエラーとして扱う。
func (s *WebhookSender) Send(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhookペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Hydrate/1.0 Webhook")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("webhookの送信に失敗しました",
			slog.String("reminder_id", payload.ReminderID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("webhookの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhookがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}
