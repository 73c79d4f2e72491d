package events

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"fabric-qc/internal/domain/entity"
)

// Hub раздаёт события всем подписчикам: чатам и WebSocket клиентам.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan entity.Event

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Stats счётчики доставки.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Sent        uint64 `json:"sent"`
	Dropped     uint64 `json:"dropped"`
}

// NewHub создаёт пустой хаб.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan entity.Event)}
}

// Subscribe регистрирует подписчика с очередью на buffer событий.
func (h *Hub) Subscribe(buffer int) (uuid.UUID, <-chan entity.Event) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	id := uuid.New()
	ch := make(chan entity.Event, buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe удаляет подписчика и закрывает его канал.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Broadcast отправляет событие всем подписчикам. Медленный подписчик
// теряет событие, остальные его получают.
func (h *Hub) Broadcast(e entity.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			log.Printf("subscriber %s is slow, dropped event %s", id, e.ID)
		}
	}
}

// Run пересылает события из источника до отмены контекста или закрытия канала.
// При выходе все подписчики отключаются.
func (h *Hub) Run(ctx context.Context, src <-chan entity.Event) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-src:
			if !ok {
				return
			}
			h.Broadcast(e)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Stats возвращает текущие счётчики.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return Stats{Subscribers: n, Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}
