// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/hydrate/internal/auth"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// deviceIDContextKey はリクエストコンテキストにデバイスIDを格納するためのキー。
	deviceIDContextKey = contextKey("device_id")
)

// accessTokenQueryParam はWebSocket接続時にヘッダーの代わりに使うクエリパラメータ。
// ブラウザやReact NativeのWebSocketはAuthorizationヘッダーを付与できない。
const accessTokenQueryParam = "access_token"

// TokenVerifier はアクセストークンの検証インターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はBearerトークンを検証し、ユーザーIDとデバイスIDを
// リクエストコンテキストに注入するミドルウェアを返す。
// WebSocketのアップグレード要求に限り、access_tokenクエリパラメータも受け付ける。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && isWebSocketUpgrade(r) {
				token = r.URL.Query().Get(accessTokenQueryParam)
			}
			if token == "" {
				WriteUnauthorized(w)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteUnauthorized(w)
				return
			}

			if meta := requestMetaFromContext(r.Context()); meta != nil {
				meta.userID = claims.UserID
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			ctx = context.WithValue(ctx, deviceIDContextKey, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// DeviceIDFromContext はリクエストコンテキストからデバイスIDを取得する。
func DeviceIDFromContext(ctx context.Context) (string, error) {
	deviceID, ok := ctx.Value(deviceIDContextKey).(string)
	if !ok || deviceID == "" {
		return "", fmt.Errorf("device ID not found in context")
	}
	return deviceID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithDeviceID はコンテキストにデバイスIDを注入する。
func ContextWithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey, deviceID)
}
