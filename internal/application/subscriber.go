package app

import (
	"context"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
)

type SubscriberService struct {
	repo port.SubscriberRepository
}

func NewSubscriberService(repo port.SubscriberRepository) *SubscriberService {
	return &SubscriberService{repo: repo}
}

func (s *SubscriberService) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *SubscriberService) SetState(ctx context.Context, userID, chatID int64, state entity.SubscriberState) (*entity.Subscriber, error) {
	subscriber, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	subscriber.SetState(state)
	if err := s.repo.Save(ctx, subscriber); err != nil {
		return nil, err
	}

	return subscriber, nil
}

func (s *SubscriberService) Subscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateSubscribed)
}

func (s *SubscriberService) Unsubscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateUnsubscribed)
}

// ListSubscribed возвращает чаты, куда нужно отправлять события.
func (s *SubscriberService) ListSubscribed(ctx context.Context) ([]*entity.Subscriber, error) {
	return s.repo.ListSubscribed(ctx)
}
