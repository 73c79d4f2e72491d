package port

import (
	"context"

	"fabric-qc/internal/domain/entity"
)

// EventSink получатель событий о дефектах
type EventSink interface {
	// Publish отправляет событие, не блокируя конвейер
	Publish(ctx context.Context, event entity.Event) error
}
