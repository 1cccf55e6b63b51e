package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 16
)

// イベント種別
const (
	EventPlan     = "plan"
	EventReminder = "reminder"
	EventIntake   = "intake"
)

// Event はWebSocketで配信するメッセージ。
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// SessionGauge は接続数の変化を受け取るインターフェース。
type SessionGauge interface {
	SetRealtimeSessions(count int)
}

type session struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub はユーザーごとのWebSocketセッションを管理し、イベントを配信する。
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
	count    int
	upgrader websocket.Upgrader
	logger   *slog.Logger
	gauge    SessionGauge
}

// NewHub はHubを生成する。allowedOriginが空または"*"の場合は全オリジンを許可する。
// ネイティブアプリはOriginヘッダーを送らないため、Originなしの接続は常に許可する。
func NewHub(logger *slog.Logger, gauge SessionGauge, allowedOrigin string) *Hub {
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		logger:   logger,
		gauge:    gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS は接続をWebSocketにアップグレードし、切断されるまでブロックする。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &session{userID: userID, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register(s)

	go h.writePump(s)
	h.readPump(s)
	return nil
}

// Publish はユーザーの全セッションにイベントを送り、送信キューに入れたセッション数を返す。
// 送信キューが詰まっているセッションには送らない。
func (h *Hub) Publish(userID string, ev Event) int {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("イベントのエンコードに失敗しました",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.sessions[userID] {
		select {
		case s.send <- msg:
			delivered++
		default:
			h.logger.Warn("送信キューが満杯のためイベントを破棄しました",
				slog.String("user_id", userID),
				slog.String("type", ev.Type),
			)
		}
	}
	return delivered
}

// Connected はユーザーの接続中セッションがあるかを返す。
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID]) > 0
}

// Disconnect はユーザーの全セッションを切断し、切断した数を返す。
func (h *Hub) Disconnect(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[userID]
	for s := range set {
		close(s.send)
	}
	delete(h.sessions, userID)
	h.count -= len(set)
	h.reportCount()
	return len(set)
}

// Close は全セッションを切断する。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.sessions {
		for s := range set {
			close(s.send)
		}
		delete(h.sessions, userID)
	}
	h.count = 0
	h.reportCount()
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.userID] == nil {
		h.sessions[s.userID] = make(map[*session]struct{})
	}
	h.sessions[s.userID][s] = struct{}{}
	h.count++
	h.reportCount()

	h.logger.Debug("WebSocketセッションを登録しました",
		slog.String("user_id", s.userID),
		slog.Int("sessions", h.count),
	)
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[s.userID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, s.userID)
	}
	close(s.send)
	h.count--
	h.reportCount()
}

func (h *Hub) reportCount() {
	if h.gauge != nil {
		h.gauge.SetRealtimeSessions(h.count)
	}
}

// readPump はクライアントからの受信を読み捨て、切断を検知する。
func (h *Hub) readPump(s *session) {
	defer func() {
		h.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は送信キューのメッセージとpingを書き込む。
func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
