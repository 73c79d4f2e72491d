package storage

import (
	"context"
	"sort"
	"sync"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
)

// MemorySubscriberRepository in-memory хранилище операторов
type MemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[int64]*entity.Subscriber
}

// NewMemorySubscriberRepository создаёт новое in-memory хранилище
func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{
		subscribers: make(map[int64]*entity.Subscriber),
	}
}

// Get возвращает копию оператора по ID, создаёт нового если не найден
func (r *MemorySubscriberRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	r.mu.RLock()
	s, exists := r.subscribers[userID]
	r.mu.RUnlock()

	if exists {
		cp := *s
		return &cp, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Между блокировками оператора мог создать другой запрос.
	if s, exists := r.subscribers[userID]; exists {
		cp := *s
		return &cp, nil
	}
	s = entity.NewSubscriber(userID, chatID)
	r.subscribers[userID] = s
	cp := *s
	return &cp, nil
}

// Save сохраняет состояние оператора
func (r *MemorySubscriberRepository) Save(ctx context.Context, subscriber *entity.Subscriber) error {
	cp := *subscriber
	r.mu.Lock()
	r.subscribers[subscriber.ID] = &cp
	r.mu.Unlock()

	return nil
}

// UpdateState обновляет состояние подписки
func (r *MemorySubscriberRepository) UpdateState(ctx context.Context, userID int64, state entity.SubscriberState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.subscribers[userID]; exists {
		s.SetState(state)
	}

	return nil
}

// ListSubscribed возвращает подписанных операторов, упорядоченных по ID
func (r *MemorySubscriberRepository) ListSubscribed(ctx context.Context) ([]*entity.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entity.Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		if s.Subscribed() {
			cp := *s
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Проверка реализации интерфейса
var _ port.SubscriberRepository = (*MemorySubscriberRepository)(nil)
