package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/brutella/hc/log"
	"github.com/coder/websocket"

	"github.com/johnpoole/glencoe-curling-camera-capture/watch"
)

// hub pushes a message to every websocket client when the last frame is
// replaced.
type hub struct {
	subscribers      map[*subscriber]struct{}
	subscribersMutex sync.Mutex
	messageBuffer    int
}

type subscriber struct {
	msgs chan []byte
}

func newHub() *hub {
	return &hub{
		messageBuffer: 4,
		subscribers:   make(map[*subscriber]struct{}),
	}
}

type frameMsg struct {
	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
	Size         int64  `json:"size"`
}

func (h *hub) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.subscribe(r.Context(), w, r); err != nil {
		log.Debug.Println("WebService: websocket:", err)
	}
}

func (h *hub) addSubscriber(sub *subscriber) {
	h.subscribersMutex.Lock()
	h.subscribers[sub] = struct{}{}
	h.subscribersMutex.Unlock()
}

func (h *hub) removeSubscriber(sub *subscriber) {
	h.subscribersMutex.Lock()
	delete(h.subscribers, sub)
	h.subscribersMutex.Unlock()
}

func (h *hub) count() int {
	h.subscribersMutex.Lock()
	defer h.subscribersMutex.Unlock()
	return len(h.subscribers)
}

func (h *hub) subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close(websocket.StatusInternalError, "goodbye")

	sub := &subscriber{msgs: make(chan []byte, h.messageBuffer)}
	h.addSubscriber(sub)
	defer h.removeSubscriber(sub)

	ctx = c.CloseRead(ctx)
	for {
		select {
		case msg := <-sub.msgs:
			if err := writeTimeout(ctx, 5*time.Second, c, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, msg)
}

// publishMsg queues msg for every subscriber. A subscriber whose queue is
// full misses the message; the next one carries the newer frame anyway.
func (h *hub) publishMsg(msg []byte) {
	h.subscribersMutex.Lock()
	defer h.subscribersMutex.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.msgs <- msg:
		default:
		}
	}
}

// frameChanged is the watch callback for the last slot.
func (h *hub) frameChanged(ch watch.Change) {
	msg, err := json.Marshal(frameMsg{
		ETag:         etag(ch.Size, ch.ModTime),
		LastModified: ch.ModTime.UTC().Format(http.TimeFormat),
		Size:         ch.Size,
	})
	if err != nil {
		return
	}
	h.publishMsg(msg)
}
