// Package events доставка событий о дефектах от конвейера к подписчикам.
package events

import (
	"context"
	"log"
	"sync/atomic"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
)

// DefaultBuffer размер очереди событий по умолчанию.
const DefaultBuffer = 64

// ChannelSink ограниченная очередь событий. Publish никогда не блокирует:
// при переполнении событие отбрасывается.
type ChannelSink struct {
	ch      chan entity.Event
	dropped atomic.Uint64
}

// NewChannelSink создаёт очередь на size событий.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &ChannelSink{ch: make(chan entity.Event, size)}
}

// Publish кладёт событие в очередь или отбрасывает его.
func (s *ChannelSink) Publish(ctx context.Context, e entity.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
		log.Printf("event sink full, dropped event %s (%s)", e.ID, e.Summary)
	}
	return nil
}

// Events канал для чтения событий.
func (s *ChannelSink) Events() <-chan entity.Event {
	return s.ch
}

// Dropped число отброшенных событий.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

var _ port.EventSink = (*ChannelSink)(nil)
