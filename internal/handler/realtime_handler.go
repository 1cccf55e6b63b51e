package handler

import (
	"log/slog"
	"net/http"
)

// RealtimeServer はWebSocket接続を受け付けるインターフェース。
type RealtimeServer interface {
	// ServeWS は接続をアップグレードしてユーザーのセッションとして登録する。
	// 失敗時はレスポンスを書き込み済みでエラーを返す。
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandler は計画・リマインダーイベントのリアルタイム配信のHTTPハンドラー。
type RealtimeHandler struct {
	server RealtimeServer
	logger *slog.Logger
}

// NewRealtimeHandler はRealtimeHandlerを生成する。
func NewRealtimeHandler(server RealtimeServer, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{server: server, logger: logger}
}

// Connect はWebSocket接続を開始する。
// GET /api/realtime
func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.server.ServeWS(w, r, userID); err != nil {
		h.logger.Warn("WebSocket接続に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
