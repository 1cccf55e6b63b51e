// Package notify はリマインダーの配信チャネルを提供する。
// Expoプッシュ通知、ユーザー指定のWebhook、接続中アプリへのWebSocket配信を含む。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	// DefaultExpoEndpoint はExpoプッシュ送信APIのエンドポイント。
	DefaultExpoEndpoint = "https://exp.host/--/api/v2/push/send"
	// maxMessagesPerRequest は1リクエストあたりの最大メッセージ数。
	maxMessagesPerRequest = 100
	// maxExpoResponseSize はレスポンスボディの読み取り上限。
	maxExpoResponseSize = 1 << 20
)

// PushMessage はExpoに送信する1件のプッシュ通知。
type PushMessage struct {
	To        string         `json:"to"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Sound     string         `json:"sound,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// PushTicket はメッセージごとの送信結果。
type PushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

// OK は送信が受け付けられたかを返す。
func (t PushTicket) OK() bool {
	return t.Status == "ok"
}

// DeviceNotRegistered はプッシュトークンが無効になったことを示すエラーかを返す。
func (t PushTicket) DeviceNotRegistered() bool {
	return t.Details.Error == "DeviceNotRegistered"
}

// ExpoConfig はExpoクライアントの設定。
type ExpoConfig struct {
	// Endpoint は送信APIのURL。空の場合はDefaultExpoEndpointを使う。
	Endpoint string
	// AccessToken はExpoのアクセストークン（拡張セキュリティ有効時のみ必要）。
	AccessToken string
	// RatePerSecond は1秒あたりの最大リクエスト数。
	RatePerSecond float64
}

// ExpoClient はExpoプッシュ送信APIのクライアント。
// リクエストはトークンバケットで間隔を調整して送信する。
type ExpoClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	endpoint    string
	accessToken string
	limiter     *rate.Limiter
}

// NewExpoClient はExpoClientの新しいインスタンスを生成する。
func NewExpoClient(httpClient *http.Client, logger *slog.Logger, cfg ExpoConfig) *ExpoClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultExpoEndpoint
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &ExpoClient{
		httpClient:  httpClient,
		logger:      logger,
		endpoint:    endpoint,
		accessToken: cfg.AccessToken,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Send はメッセージを送信し、入力と同じ順序で送信結果を返す。
// 100件を超える場合は分割して送信する。
func (c *ExpoClient) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	tickets := make([]PushTicket, 0, len(messages))
	for start := 0; start < len(messages); start += maxMessagesPerRequest {
		end := min(start+maxMessagesPerRequest, len(messages))
		chunk, err := c.sendChunk(ctx, messages[start:end])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, chunk...)
	}
	return tickets, nil
}

func (c *ExpoClient) sendChunk(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("送信待機が中断されました: %w", err)
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("プッシュ通知のエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Hydrate/1.0 Reminder")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Expoプッシュ送信APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("message_count", len(messages)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExpoResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Expoプッシュ送信APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("message_count", len(messages)),
		)
		return nil, fmt.Errorf("Expoプッシュ送信APIがステータス %d を返しました", resp.StatusCode)
	}

	var result struct {
		Data []PushTicket `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(result.Data) != len(messages) {
		return nil, fmt.Errorf("送信結果の件数が一致しません: got %d, want %d", len(result.Data), len(messages))
	}

	return result.Data, nil
}
