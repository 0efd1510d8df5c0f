package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now - can be restricted in production
		return true
	},
}

// WebSocketHandler handles WebSocket connections for sync event delivery
type WebSocketHandler struct {
	hub *services.SyncHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.SyncHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection.
// An optional facilityId query parameter subscribes the client immediately.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn)

	if inspector != nil {
		h.hub.SetUserID(client, inspector.ID)
	}

	h.hub.Register(client)

	if facilityID := r.URL.Query().Get("facilityId"); facilityID != "" {
		h.hub.Subscribe(client, services.FacilityTopic(facilityID))
	}

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Invalid WebSocket message: %v", err)
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic, ok := msg.Payload.(string); ok {
			h.hub.Subscribe(client, topic)
		} else if payload, ok := msg.Payload.(map[string]interface{}); ok {
			if topic, ok := payload["topic"].(string); ok {
				h.hub.Subscribe(client, topic)
			}
		}

	case services.WSTypeUnsubscribe:
		if topic, ok := msg.Payload.(string); ok {
			h.hub.Unsubscribe(client, topic)
		} else if payload, ok := msg.Payload.(map[string]interface{}); ok {
			if topic, ok := payload["topic"].(string); ok {
				h.hub.Unsubscribe(client, topic)
			}
		}

	case services.WSTypePing:
		// Respond with pong
		response := services.WSMessage{
			Type:    services.WSTypePong,
			Payload: nil,
		}
		if data, err := json.Marshal(response); err == nil {
			client.Send <- data
		}

	default:
		log.Printf("Unknown WebSocket message type: %s", msg.Type)
	}
}
