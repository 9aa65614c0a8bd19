package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize  = 256
	cleanupInterval = 5 * time.Minute
	writeWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the studio UI is served from a different origin in development
		return true
	},
}

// client - one websocket subscriber of one job
type client struct {
	conn  *websocket.Conn
	jobID string
	send  chan []byte
}

// topic - subscribers of a job
type topic struct {
	jobID        string
	clients      map[*client]struct{}
	createdAt    time.Time
	lastActivity time.Time
}

// Metrics - hub counters
type Metrics struct {
	TotalTopics      int       `json:"totalTopics"`
	ActiveTopics     int       `json:"activeTopics"`
	TotalConnections int       `json:"totalConnections"`
	Published        int       `json:"published"`
	Dropped          int       `json:"dropped"`
	StartTime        time.Time `json:"startTime"`
}

// Hub - fans job progress events out to websocket subscribers
type Hub struct {
	mu      sync.Mutex
	topics  map[string]*topic
	metrics Metrics
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]*topic),
		metrics: Metrics{StartTime: time.Now()},
	}
}

// RegisterRoutes - GET /ws/jobs?job=<id>, GET /ws/jobs/{jobId}, GET /metrics, POST /admin/cleanup
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/jobs", h.ServeWS)
	r.HandleFunc("/ws/jobs/{jobId}", h.TopicInfo).Methods("GET")
	r.HandleFunc("/metrics", h.MetricsHandler).Methods("GET")
	r.HandleFunc("/admin/cleanup", h.CleanupHandler).Methods("POST")
	log.Println("✅ [Hub] Routes registered: /ws/jobs, /ws/jobs/{jobId}, /metrics, /admin/cleanup")
}

// Publish - marshal event and queue it for every subscriber of jobID
//
// A subscriber whose send buffer is full is dropped.
func (h *Hub) Publish(jobID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ [Hub] Error marshaling event for job %s: %v", jobID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.Published++
	t, ok := h.topics[jobID]
	if !ok {
		return
	}
	t.lastActivity = time.Now()
	for c := range t.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(t.clients, c)
			h.metrics.Dropped++
			log.Printf("⚠️  [Hub] Dropped slow subscriber of job %s", jobID)
		}
	}
}

func (h *Hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[c.jobID]
	if !ok {
		now := time.Now()
		t = &topic{jobID: c.jobID, clients: make(map[*client]struct{}), createdAt: now, lastActivity: now}
		h.topics[c.jobID] = t
		h.metrics.TotalTopics++
		h.metrics.ActiveTopics++
	}
	t.clients[c] = struct{}{}
	t.lastActivity = time.Now()
	h.metrics.TotalConnections++
	return len(t.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[c.jobID]
	if !ok {
		return
	}
	// already dropped by Publish when absent
	if _, ok := t.clients[c]; ok {
		delete(t.clients, c)
		close(c.send)
	}
}

// Cleanup - remove topics without subscribers; returns how many were removed
func (h *Hub) Cleanup() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cleaned := 0
	for id, t := range h.topics {
		if len(t.clients) == 0 {
			delete(h.topics, id)
			h.metrics.ActiveTopics--
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Printf("🗑️  [Hub] Cleaned up %d empty topics (Active: %d)", cleaned, h.metrics.ActiveTopics)
	}
	return cleaned
}

// Start - periodic cleanup until ctx is done
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	log.Printf("🔄 [Hub] Started topic cleanup routine (every %s)", cleanupInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Cleanup()
		}
	}
}

// Snapshot - current counters
func (h *Hub) Snapshot() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// Subscribers - current subscriber count of a job
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[jobID]; ok {
		return len(t.clients)
	}
	return 0
}

// ServeWS - upgrade and subscribe to ?job=<id>
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ [Hub] WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, jobID: jobID, send: make(chan []byte, sendBufferSize)}
	count := h.add(c)
	log.Printf("🔍 [Hub] New subscriber for job %s (%d total)", jobID, count)

	go c.writePump()
	go c.readPump(h)
}

// readPump - subscribers only listen; reading detects the close
func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️  [Hub] WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("⚠️  [Hub] WebSocket write error: %v", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// TopicInfo - subscriber count and age of a job topic
func (h *Hub) TopicInfo(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	h.mu.Lock()
	t, ok := h.topics[jobID]
	var info map[string]interface{}
	if ok {
		info = map[string]interface{}{
			"jobId":        jobID,
			"subscribers":  len(t.clients),
			"createdAt":    t.createdAt,
			"lastActivity": t.lastActivity,
			"inactive":     time.Since(t.lastActivity).String(),
		}
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Job topic not found"})
		return
	}
	json.NewEncoder(w).Encode(info)
}

// MetricsHandler - GET /metrics
func (h *Hub) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	m := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"hub":    m,
		"uptime": time.Since(m.StartTime).String(),
	})
}

// CleanupHandler - POST /admin/cleanup
func (h *Hub) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	cleaned := h.Cleanup()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "Cleanup completed",
		"cleaned": cleaned,
	})
}
