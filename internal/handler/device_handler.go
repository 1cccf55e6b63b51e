package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/hydrate/internal/auth"
	"github.com/hitoshi/hydrate/internal/middleware"
	"github.com/hitoshi/hydrate/internal/model"
)

// DeviceServiceInterface はデバイスハンドラーが必要とするサービスインターフェース。
type DeviceServiceInterface interface {
	// RegisterDevice は匿名ユーザーとデバイスを作成し、アクセストークンを発行する。
	RegisterDevice(ctx context.Context, input auth.DeviceInput) (*auth.Registration, error)
	// UpdateDevice はプッシュトークンと通知許可状態を更新する。
	UpdateDevice(ctx context.Context, userID, deviceID string, input auth.DeviceInput) (*model.Device, error)
}

// DeviceHandler はデバイス登録のHTTPハンドラー。
type DeviceHandler struct {
	service DeviceServiceInterface
}

// NewDeviceHandler はDeviceHandlerを生成する。
func NewDeviceHandler(service DeviceServiceInterface) *DeviceHandler {
	return &DeviceHandler{service: service}
}

type deviceRequest struct {
	Platform             model.Platform `json:"platform"`
	PushToken            string         `json:"pushToken"`
	NotificationsEnabled bool           `json:"notificationsEnabled"`
}

func (req deviceRequest) input() auth.DeviceInput {
	return auth.DeviceInput{
		Platform:             req.Platform,
		PushToken:            req.PushToken,
		NotificationsEnabled: req.NotificationsEnabled,
	}
}

type registrationResponse struct {
	UserID      string    `json:"userId"`
	DeviceID    string    `json:"deviceId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type deviceResponse struct {
	ID                   string         `json:"id"`
	Platform             model.Platform `json:"platform"`
	PushTokenRegistered  bool           `json:"pushTokenRegistered"`
	NotificationsEnabled bool           `json:"notificationsEnabled"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Register はデバイスを登録する。認証不要。
// POST /api/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.service.RegisterDevice(r.Context(), req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registrationResponse{
		UserID:      reg.UserID,
		DeviceID:    reg.DeviceID,
		AccessToken: reg.AccessToken,
		ExpiresAt:   reg.ExpiresAt,
	})
}

// UpdateMe はトークンに紐づくデバイスを更新する。
// PUT /api/devices/me
func (h *DeviceHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}
	deviceID, err := middleware.DeviceIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req deviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	device, err := h.service.UpdateDevice(r.Context(), userID, deviceID, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deviceResponse{
		ID:                   device.ID,
		Platform:             device.Platform,
		PushTokenRegistered:  device.PushToken != "",
		NotificationsEnabled: device.NotificationsEnabled,
		UpdatedAt:            device.UpdatedAt,
	})
}
