package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// expoServer は受け取ったメッセージ数だけ"ok"チケットを返すテスト用サーバー。
func expoServer(t *testing.T, ticket func(i int, m PushMessage) PushTicket) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		var messages []PushMessage
		if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
			t.Errorf("リクエストのデコードに失敗: %v", err)
		}
		tickets := make([]PushTicket, len(messages))
		for i, m := range messages {
			tickets[i] = ticket(i, m)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func okTicket(i int, _ PushMessage) PushTicket {
	return PushTicket{Status: "ok", ID: fmt.Sprintf("ticket-%d", i)}
}

func TestExpoClient_Send_Success(t *testing.T) {
	server, _ := expoServer(t, okTicket)
	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL})

	tickets, err := c.Send(context.Background(), []PushMessage{
		{To: "ExponentPushToken[a]", Title: "水分補給", Body: "250ml どうですか？"},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(tickets) != 1 || !tickets[0].OK() {
		t.Errorf("tickets = %+v, want one ok ticket", tickets)
	}
}

func TestExpoClient_Send_SplitsIntoChunks(t *testing.T) {
	server, requests := expoServer(t, okTicket)
	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL})

	messages := make([]PushMessage, 150)
	for i := range messages {
		messages[i] = PushMessage{To: fmt.Sprintf("ExponentPushToken[%d]", i)}
	}

	tickets, err := c.Send(context.Background(), messages)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(tickets) != 150 {
		t.Errorf("len(tickets) = %d, want 150", len(tickets))
	}
	if got := atomic.LoadInt32(requests); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestExpoClient_Send_DeviceNotRegistered(t *testing.T) {
	server, _ := expoServer(t, func(i int, m PushMessage) PushTicket {
		tk := PushTicket{Status: "error", Message: "not a registered push token"}
		tk.Details.Error = "DeviceNotRegistered"
		return tk
	})
	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL})

	tickets, err := c.Send(context.Background(), []PushMessage{{To: "ExponentPushToken[gone]"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if tickets[0].OK() {
		t.Error("ticket should not be ok")
	}
	if !tickets[0].DeviceNotRegistered() {
		t.Error("DeviceNotRegistered() = false, want true")
	}
}

func TestExpoClient_Send_SetsAccessToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[{"status":"ok","id":"x"}]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL, AccessToken: "secret"})

	if _, err := c.Send(context.Background(), []PushMessage{{To: "t"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
}

func TestExpoClient_Send_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL})

	if _, err := c.Send(context.Background(), []PushMessage{{To: "t"}}); err == nil {
		t.Fatal("expected error for 429")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"http_status":429`)) {
		t.Errorf("log should contain http_status, got %s", buf.String())
	}
}

func TestExpoClient_Send_TicketCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL})

	if _, err := c.Send(context.Background(), []PushMessage{{To: "t"}}); err == nil {
		t.Fatal("expected error for ticket count mismatch")
	}
}

func TestExpoClient_Send_CancelledContext(t *testing.T) {
	server, requests := expoServer(t, okTicket)
	var buf bytes.Buffer
	c := NewExpoClient(server.Client(), newTestLogger(&buf), ExpoConfig{Endpoint: server.URL, RatePerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Send(ctx, []PushMessage{{To: "t"}}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if got := atomic.LoadInt32(requests); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestNewExpoClient_DefaultEndpoint(t *testing.T) {
	var buf bytes.Buffer
	c := NewExpoClient(http.DefaultClient, newTestLogger(&buf), ExpoConfig{})
	if c.endpoint != DefaultExpoEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultExpoEndpoint)
	}
}
