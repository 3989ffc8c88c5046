package stream

import (
	"encoding/json"
	"sync"

	"github.com/dreamcity/orderflow-monitor/internal/query"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans snapshot updates out to every connected subscriber.
type Hub struct {
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}
	stopOnce  sync.Once

	mu      sync.RWMutex
	clients map[Subscriber]struct{}
}

// NewHub creates a Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
		done:      make(chan struct{}),
		clients:   make(map[Subscriber]struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a subscriber. It is a no-op once the hub is closed.
func (h *Hub) Register(c Subscriber) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(c Subscriber) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// Broadcast sends payload to every subscriber; failing subscribers are dropped.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the dispatch loop and closes every subscriber.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
}

// TilesMessage is the payload pushed after every snapshot swap.
type TilesMessage struct {
	Snapshot string         `json:"snapshot"`
	LoadedAt string         `json:"loaded_at"`
	Rollups  int            `json:"rollups"`
	Tiles    map[string]int `json:"tiles"`
}

// EncodeTiles renders the tile counts of snap.
func EncodeTiles(snap *query.Snapshot) ([]byte, error) {
	return json.Marshal(TilesMessage{
		Snapshot: snap.ID,
		LoadedAt: utils.FormatUTC(snap.LoadedAt),
		Rollups:  snap.Len(),
		Tiles:    snap.Counts(),
	})
}

// PublishSnapshot broadcasts the tile counts of snap.
func (h *Hub) PublishSnapshot(snap *query.Snapshot) error {
	payload, err := EncodeTiles(snap)
	if err != nil {
		return err
	}
	h.Broadcast(payload)
	return nil
}
