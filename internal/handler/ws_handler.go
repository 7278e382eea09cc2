package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"yeenote-sync-server/internal/domain"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/websocket"
	"yeenote-sync-server/pkg/jwt"
	"yeenote-sync-server/pkg/response"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBuffer, writeBuffer int, allowedOrigins string) *WebSocketHandler {
	allowed := middleware.OriginMatcher(allowedOrigins)
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed(origin)
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}

	if token == "" {
		log.Printf("[WebSocket] Missing authorization token")
		response.Unauthorized(w, "Missing authorization token")
		return
	}

	claims, err := jwt.ValidateAccessToken(token, h.jwtSecret)
	if err != nil {
		log.Printf("[WebSocket] Token validation failed: %v", err)
		response.Unauthorized(w, "Invalid or expired token")
		return
	}

	userID := claims.UserID

	deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))
	if deviceID == "" {
		deviceID = strings.TrimSpace(r.Header.Get(middleware.DeviceIDHeader))
	}
	if deviceID == "" {
		deviceID = "default"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Failed to upgrade connection: %v", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, deviceID, conn, h.manager)

	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler answers the requests devices send over their
// connection.
type WebSocketMessageHandler struct {
	manager *websocket.Manager
	queries SyncQuerier
}

func NewWebSocketMessageHandler(manager *websocket.Manager, queries SyncQuerier) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager: manager,
		queries: queries,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePendingRequest:
		return h.handlePendingRequest(client, msg)

	case websocket.TypePing:
		return h.reply(client, websocket.TypePong, nil)

	default:
		return h.replyError(client, errors.New("unknown message type: "+string(msg.Type)))
	}
}

func (h *WebSocketMessageHandler) handlePendingRequest(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.PendingRequestPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return h.replyError(client, errors.New("invalid pending_request payload"))
	}

	kind, err := domain.ParseEntityKind(string(payload.Kind))
	if err != nil {
		return h.replyError(client, err)
	}

	ctx := domain.WithDeviceID(context.Background(), client.DeviceID)
	changes, err := h.queries.PendingChanges(ctx, client.UserID, kind, payload.Since)
	if err != nil {
		return h.replyError(client, err)
	}

	return h.reply(client, websocket.TypePendingResponse, changes)
}

func (h *WebSocketMessageHandler) reply(client *websocket.Client, msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return h.manager.Reply(client, msg)
}

func (h *WebSocketMessageHandler) replyError(client *websocket.Client, cause error) error {
	if err := h.reply(client, websocket.TypeError, &websocket.ErrorPayload{Error: cause.Error()}); err != nil {
		return err
	}
	return cause
}
