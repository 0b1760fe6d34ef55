// Package gateway pushes session events to websocket clients and accepts their
// in-game commands.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/scatter/go/internal/events"
)

// CommandHandler executes commands sent by connected players.
type CommandHandler interface {
	RequestSkip(ctx context.Context, pin int, token string) error
}

// ConnectionManager keeps the websocket connections of every session and
// broadcasts session events to them.
type ConnectionManager struct {
	sessions map[int]map[*Connection]bool
	mu       sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	commands    CommandHandler
	broadcastCh chan *events.Event
}

// Connection is one websocket client attached to a session.
type Connection struct {
	ID          string
	Pin         int
	Token       string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time

	limiter *rate.Limiter
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	BroadcastBuffer int
	CommandRate     rate.Limit
	CommandBurst    int
	CommandTimeout  time.Duration
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		BroadcastBuffer: 1000,
		CommandRate:     rate.Every(500 * time.Millisecond),
		CommandBurst:    3,
		CommandTimeout:  5 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Stats summarizes the open connections.
type Stats struct {
	TotalConnections   int         `json:"total_connections"`
	ActiveSessions     int         `json:"active_sessions"`
	SessionConnections map[int]int `json:"session_connections"`
}

type clientMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewConnectionManager creates a connection manager. commands may be nil, in
// which case client commands are rejected.
func NewConnectionManager(config ConnectionConfig, commands CommandHandler) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[int]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		commands:    commands,
		broadcastCh: make(chan *events.Event, config.BroadcastBuffer),
	}
}

// SetCommandHandler installs the handler for client commands. It must be
// called before the manager accepts connections.
func (cm *ConnectionManager) SetCommandHandler(commands CommandHandler) {
	cm.commands = commands
}

// Start processes queued broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case ev := <-cm.broadcastCh:
			cm.handleBroadcast(ev)
		}
	}
}

// Publish queues ev for every connection of its session. It never blocks; when
// the queue is full the event is dropped.
func (cm *ConnectionManager) Publish(_ context.Context, ev *events.Event) {
	select {
	case cm.broadcastCh <- ev:
	default:
		log.Warn().
			Int("session_pin", ev.SessionPin).
			Str("event_type", string(ev.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket attached to pin.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, pin int, token string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Pin:         pin,
		Token:       token,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
		limiter:     rate.NewLimiter(cm.config.CommandRate, cm.config.CommandBurst),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Int("session_pin", pin).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessions[conn.Pin] == nil {
		cm.sessions[conn.Pin] = make(map[*Connection]bool)
	}
	cm.sessions[conn.Pin][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("session_pin", conn.Pin).
		Int("total_connections", len(cm.sessions[conn.Pin])).
		Msg("connection registered")
}

// unregisterConnection removes conn and closes its send channel once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.sessions[conn.Pin]
	if !exists || !connections[conn] {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.sessions, conn.Pin)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Int("session_pin", conn.Pin).
		Msg("connection unregistered")
}

// enqueue hands data to conn unless it is already gone or its buffer is full.
// Sending happens under the read lock so it cannot race with close(conn.Send).
func (cm *ConnectionManager) enqueue(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.sessions[conn.Pin][conn] {
		return true
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) handleBroadcast(ev *events.Event) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.sessions[ev.SessionPin]))
	for conn := range cm.sessions[ev.SessionPin] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !cm.enqueue(conn, data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Int("session_pin", conn.Pin).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(ev.Type)).
		Int("session_pin", ev.SessionPin).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns the number of open connections per session.
func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{SessionConnections: make(map[int]int, len(cm.sessions))}
	for pin, connections := range cm.sessions {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[pin] = len(connections)
	}
	stats.ActiveSessions = len(cm.sessions)
	return stats
}

// CloseAll disconnects every client.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessions {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage executes a client command. Failures are reported back to
// the sender only.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply("malformed message")
		return
	}
	if !c.limiter.Allow() {
		log.Warn().Str("connection_id", c.ID).Int("session_pin", c.Pin).Msg("client command rate limited")
		c.reply("too many commands")
		return
	}

	switch msg.Type {
	case "skip":
		if c.Manager.commands == nil {
			c.reply("commands are not accepted")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
		defer cancel()
		if err := c.Manager.commands.RequestSkip(ctx, c.Pin, c.Token); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Int("session_pin", c.Pin).Msg("skip rejected")
			c.reply(err.Error())
		}
	default:
		c.reply(fmt.Sprintf("unknown command %q", msg.Type))
	}
}

func (c *Connection) reply(text string) {
	data, err := json.Marshal(errorMessage{Type: "error", Message: text})
	if err != nil {
		return
	}
	c.Manager.enqueue(c, data)
}
