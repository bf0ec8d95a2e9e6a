package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "wearaudio/internal/log"
)

// wsFrame is the JSON payload broadcast to monitoring clients.
type wsFrame struct {
	Magnitudes []float64 `json:"magnitudes"`
}

// WebSocketTransport broadcasts spectrum frames to all connected
// monitoring clients. A bounded broadcast channel decouples Send from the
// per-client writes; frames are dropped when the channel is full.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan wsFrame
	server    *http.Server
}

// NewWebSocketTransport creates a WebSocketTransport serving /ws on addr
// and starts it.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // monitoring endpoint, any origin
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan wsFrame, 256),
	}

	wst.start()
	return wst
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Addr:    wst.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("WebSocketTransport: Starting server on %s", wst.addr)
		if err := wst.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	go func() {
		// Wait for close.
		_, _, err := conn.ReadMessage()
		if err != nil {
			wst.clientsMu.Lock()
			delete(wst.clients, conn)
			total := len(wst.clients)
			wst.clientsMu.Unlock()
			conn.Close()
			applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
		}
	}()
}

// handleBroadcasts sends queued frames to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for frame := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			if err := client.WriteJSON(frame); err != nil {
				applog.Errorf("WebSocketTransport: Error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues one spectrum frame for broadcast. The magnitudes are copied
// so the caller may reuse its buffer.
func (wst *WebSocketTransport) Send(magnitudes []float64) error {
	frame := wsFrame{Magnitudes: make([]float64, len(magnitudes))}
	copy(frame.Magnitudes, magnitudes)

	select {
	case wst.broadcast <- frame:
	default:
		// Channel full, drop the frame. Monitoring never backpressures audio.
	}
	return nil
}

// Ready reports whether at least one client is connected. A websocket
// monitor can stand in as the output peer during bench testing.
func (wst *WebSocketTransport) Ready() bool {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients) > 0
}

// Close shuts down the server and all client connections.
func (wst *WebSocketTransport) Close() error {
	applog.Info("WebSocketTransport: Closing server")

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	if wst.server != nil {
		return wst.server.Close()
	}
	return nil
}

var (
	_ Transport = (*WebSocketTransport)(nil)
	_ Peer      = (*WebSocketTransport)(nil)
)
