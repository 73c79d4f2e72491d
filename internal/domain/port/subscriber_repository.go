package port

import (
	"context"

	"fabric-qc/internal/domain/entity"
)

// SubscriberRepository интерфейс хранилища операторов
type SubscriberRepository interface {
	// Get возвращает оператора по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)

	// Save сохраняет состояние оператора
	Save(ctx context.Context, subscriber *entity.Subscriber) error

	// UpdateState обновляет состояние подписки
	UpdateState(ctx context.Context, userID int64, state entity.SubscriberState) error

	// ListSubscribed возвращает операторов с активной подпиской
	ListSubscribed(ctx context.Context) ([]*entity.Subscriber, error)
}
