package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"yeenote-sync-server/internal/domain"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager tracks live connections per user and fans out change hints.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	done           chan struct{}
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
	messageHandler MessageHandler
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

type Options struct {
	MaxConnPerUser int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func NewManager(opts Options) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		done:           make(chan struct{}),
		maxConnPerUser: opts.MaxConnPerUser,
		writeWait:      opts.WriteWait,
		pongWait:       opts.PongWait,
		pingPeriod:     opts.PingPeriod,
		maxMessageSize: opts.MaxMessageSize,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves registrations and inbound messages until Stop is called.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)

		case <-m.done:
			m.closeAll()
			return
		}
	}
}

func (m *Manager) Stop() {
	close(m.done)
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if m.maxConnPerUser > 0 && len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		log.Printf("[WebSocket] Max connections reached for user %s", client.UserID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	log.Printf("[WebSocket] Client registered: %s (user: %s, device: %s)", client.ID, client.UserID, client.DeviceID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	m.removeLocked(client)
}

func (m *Manager) removeLocked(client *Client) {
	if _, ok := m.clients[client.ID]; !ok {
		return
	}

	delete(m.clients, client.ID)
	delete(m.userIndex[client.UserID], client.ID)
	if len(m.userIndex[client.UserID]) == 0 {
		delete(m.userIndex, client.UserID)
	}

	close(client.Send)
	log.Printf("[WebSocket] Client unregistered: %s", client.ID)
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for _, client := range m.clients {
		m.removeLocked(client)
	}
}

// processMessage hands the message to the handler off the Run loop so a
// slow query never stalls registrations.
func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		log.Printf("[WebSocket] Error unmarshaling message: %v", err)
		return
	}

	if m.messageHandler == nil {
		return
	}

	go func() {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			log.Printf("[WebSocket] Error handling %s: %v", msg.Type, err)
		}
	}()
}

// BroadcastToUser queues message for every connection of userID except the
// ones opened by excludeDeviceID. Connections whose buffer is full are
// dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message, excludeDeviceID string) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		if excludeDeviceID != "" && client.DeviceID == excludeDeviceID {
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	if len(slow) > 0 {
		m.clientsMutex.Lock()
		for _, client := range slow {
			log.Printf("[WebSocket] Client %s send buffer full, closing connection", client.ID)
			m.removeLocked(client)
		}
		m.clientsMutex.Unlock()
	}

	return nil
}

// Reply queues message for a single connection.
func (m *Manager) Reply(client *Client, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if _, ok := m.clients[client.ID]; !ok {
		return nil
	}

	select {
	case client.Send <- messageBytes:
	default:
		log.Printf("[WebSocket] Client %s send buffer full", client.ID)
	}

	return nil
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.userIndex[userID])
}

func (m *Manager) broadcast(userID, originDevice string, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		log.Printf("[WebSocket] Failed to build %s: %v", msgType, err)
		return
	}
	if err := m.BroadcastToUser(userID, msg, originDevice); err != nil {
		log.Printf("[WebSocket] Failed to broadcast %s: %v", msgType, err)
	}
}

func (m *Manager) EntityChanged(userID, originDevice string, kind domain.EntityKind, id string, version int64, deleted bool) {
	m.broadcast(userID, originDevice, TypeEntityChanged, &EntityChangedPayload{
		Kind:        kind,
		ID:          id,
		SyncVersion: version,
		Deleted:     deleted,
		DeviceID:    originDevice,
	})
}

func (m *Manager) SyncCompleted(userID, originDevice string, record *domain.SyncRecord) {
	m.broadcast(userID, originDevice, TypeSyncCompleted, &SyncCompletedPayload{
		RecordID:    record.ID,
		SyncType:    record.SyncType,
		SyncDetails: record.SyncDetails,
		DeviceID:    originDevice,
	})
}

func (m *Manager) ConflictsResolved(userID, originDevice string, results []domain.ConflictResult) {
	m.broadcast(userID, originDevice, TypeConflictsResolved, &ConflictsResolvedPayload{
		Results:  results,
		DeviceID: originDevice,
	})
}
