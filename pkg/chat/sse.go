package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Hub is the in-process Transport: channels are SSE subscriber groups. It
// lets the engine run end-to-end without the external chat provider.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	channels map[string]map[string]bool // channelID -> clientID set
	byName   map[string]string          // purpose -> channelID
	interval time.Duration
	retryMs  int
}

type client struct {
	id       string
	channels map[string]bool
	ch       chan string
	done     chan struct{}
}

func NewHub(heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*client),
		channels: make(map[string]map[string]bool),
		byName:   make(map[string]string),
		interval: heartbeat,
		retryMs:  5000,
	}
}

// EnsureChannel returns the channel id for purpose, creating it on first
// use. Creation is idempotent per purpose.
func (h *Hub) EnsureChannel(ctx context.Context, purpose string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.byName[purpose]; ok {
		return id, nil
	}
	id := uuid.NewString()
	h.byName[purpose] = id
	h.channels[id] = make(map[string]bool)
	return id, nil
}

// SendToChannel fans the encoded payload out to every subscriber of the
// channel. Subscribers with a full buffer are skipped rather than blocked.
func (h *Hub) SendToChannel(ctx context.Context, channelID string, payload Payload) error {
	raw, err := payload.Encode()
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("data: %s\n\n", raw)

	h.mu.RLock()
	defer h.mu.RUnlock()
	ids, ok := h.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s does not exist", channelID)
	}
	for id := range ids {
		if c := h.clients[id]; c != nil {
			select {
			case c.ch <- msg:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers a client on a channel; the channel must already exist.
func (h *Hub) Subscribe(clientID, channelID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channelID]; !ok {
		return fmt.Errorf("channel %s does not exist", channelID)
	}
	c, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("unknown client %s", clientID)
	}
	c.channels[channelID] = true
	h.channels[channelID][clientID] = true
	return nil
}

func (h *Hub) addClient(id string) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &client{id: id, channels: make(map[string]bool), ch: make(chan string, 64), done: make(chan struct{})}
	h.clients[id] = c
	return c
}

func (h *Hub) removeClient(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		for ch := range c.channels {
			delete(h.channels[ch], id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// SubscriberCount reports how many clients are on a channel.
func (h *Hub) SubscriberCount(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}

// Serve streams channel events to an SSE client. The client subscribes to
// the channels named in the repeated "channel" query parameter.
func (h *Hub) Serve(c *gin.Context, clientID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)

	cl := h.addClient(clientID)
	defer h.removeClient(clientID)
	for _, ch := range c.QueryArray("channel") {
		_ = h.Subscribe(clientID, ch)
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-cl.ch:
			c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
