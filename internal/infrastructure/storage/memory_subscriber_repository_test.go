package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"fabric-qc/internal/domain/entity"
)

func TestMemorySubscriberRepository_GetCreates(t *testing.T) {
	repo := NewMemorySubscriberRepository()
	ctx := context.Background()

	s, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), s.ChatID)
	require.Equal(t, entity.StateUnsubscribed, s.State)

	// изменение копии без Save не влияет на хранилище
	s.SetState(entity.StateSubscribed)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateUnsubscribed, again.State)
}

func TestMemorySubscriberRepository_SaveAndList(t *testing.T) {
	repo := NewMemorySubscriberRepository()
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		s, err := repo.Get(ctx, id, id*10)
		require.NoError(t, err)
		if id != 2 {
			s.SetState(entity.StateSubscribed)
			require.NoError(t, repo.Save(ctx, s))
		}
	}

	list, err := repo.ListSubscribed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(1), list[0].ID)
	require.Equal(t, int64(3), list[1].ID)

	require.NoError(t, repo.UpdateState(ctx, 1, entity.StateUnsubscribed))
	require.NoError(t, repo.UpdateState(ctx, 42, entity.StateSubscribed))

	list, err = repo.ListSubscribed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(30), list[0].ChatID)
}
