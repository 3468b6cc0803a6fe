package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

var ErrClosed = errors.New("sync channel closed")

// Hub fans messages out to every joined endpoint in the same process.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Local
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		endpoints: make(map[string]*Local),
		logger:    logger,
	}
}

// Join opens a new endpoint. Close it to leave the hub.
func (h *Hub) Join() *Local {
	l := &Local{
		hub:  h,
		id:   uuid.NewString(),
		subs: make(map[chan Message]struct{}),
	}

	h.mu.Lock()
	h.endpoints[l.id] = l
	h.mu.Unlock()

	return l
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	delete(h.endpoints, id)
	h.mu.Unlock()
}

func (h *Hub) deliver(from string, m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, l := range h.endpoints {
		if id == from {
			continue
		}
		l.deliver(m)
	}
}

type Local struct {
	hub    *Hub
	id     string
	mu     sync.Mutex
	subs   map[chan Message]struct{}
	closed bool
}

func (l *Local) ID() string {
	return l.id
}

func (l *Local) Publish(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	m.Origin = l.id
	l.hub.deliver(l.id, m)

	return nil
}

func (l *Local) Subscribe(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message, subscriberBuffer)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.unsubscribe(ch)
	}()

	return ch, nil
}

func (l *Local) unsubscribe(ch chan Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *Local) deliver(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ch := range l.subs {
		select {
		case ch <- m:
		default:
			l.hub.logger.Warn("Dropping sync message for slow subscriber", zap.String("endpoint", l.id))
		}
	}
}

func (l *Local) Close() error {
	l.hub.leave(l.id)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}

	return nil
}
