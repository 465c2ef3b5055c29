package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is a connected dashboard and its current window selection
type client struct {
	window TimeWindow
}

// delivery targets one connection, or every connection when conn is nil
type delivery struct {
	conn *websocket.Conn
}

// clientMessage is what the dashboard sends when its time filter changes
type clientMessage struct {
	Window string `json:"window"`
}

// Broadcast queues a push of the current views. Pushes to every client are
// dropped when the queue is full since the next tick repeats them; a push
// to one new client waits up to RequestTimeout for room.
func (m *Monitor) Broadcast(d delivery) {
	if d.conn == nil {
		select {
		case m.broadcast <- d:
		default:
			m.logger.Debug("broadcast queue full, dropping push")
		}
		return
	}
	timer := time.NewTimer(m.config.RequestTimeout)
	defer timer.Stop()
	select {
	case m.broadcast <- d:
	case <-timer.C:
		m.logger.Warn("broadcast queue full, initial push timed out", "remote", d.conn.RemoteAddr().String())
	}
}

// RunBroadcaster is the only writer to websocket connections
func (m *Monitor) RunBroadcaster(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeClients()
			return
		case d := <-m.broadcast:
			m.deliver(d)
		}
	}
}

type outbound struct {
	conn *websocket.Conn
	view *View
}

func (m *Monitor) deliver(d delivery) {
	m.mu.RLock()
	targets := make([]outbound, 0, len(m.clients))
	for conn, c := range m.clients {
		if d.conn != nil && conn != d.conn {
			continue
		}
		targets = append(targets, outbound{conn: conn, view: m.views[c.window].clone()})
	}
	m.mu.RUnlock()

	for _, t := range targets {
		t.conn.SetWriteDeadline(time.Now().Add(m.config.RequestTimeout))
		err := t.conn.WriteJSON(map[string]interface{}{
			"type": "dashboard",
			"data": t.view,
		})
		if err != nil {
			m.logger.Warn("websocket write error", "error", err, "remote", t.conn.RemoteAddr().String())
			t.conn.Close()
			m.removeClient(t.conn)
		}
	}
}

func (m *Monitor) addClient(conn *websocket.Conn, w TimeWindow) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[conn] = &client{window: w}
	return len(m.clients)
}

func (m *Monitor) removeClient(conn *websocket.Conn) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, conn)
	return len(m.clients)
}

func (m *Monitor) setClientWindow(conn *websocket.Conn, w TimeWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[conn]; ok {
		c.window = w
	}
}

func (m *Monitor) closeClients() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(m.clients, conn)
	}
}

// handleWebSocket registers a dashboard client. The client's window starts
// at ?window= (or the configured default) and follows its messages.
func (m *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	window := m.config.DefaultWindow
	if q := r.URL.Query().Get("window"); q != "" {
		parsed, err := ParseWindow(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		window = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	total := m.addClient(conn, window)
	m.logger.Info("websocket client connected", "remote", conn.RemoteAddr().String(), "window", window, "total", total)

	// Send current view immediately
	m.Broadcast(delivery{conn: conn})

	defer func() {
		total := m.removeClient(conn)
		conn.Close()
		m.logger.Info("websocket client disconnected", "total", total)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Debug("ignoring malformed client message", "error", err)
			continue
		}
		sel, err := ParseWindow(msg.Window)
		if err != nil {
			m.logger.Debug("ignoring window selection", "error", err)
			continue
		}
		m.setClientWindow(conn, sel)
		m.Trigger(false, "window "+string(sel))
	}
}
