package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSubscriber_DefaultState(t *testing.T) {
	s := NewSubscriber(1, 10)
	require.Equal(t, StateUnsubscribed, s.State)
	require.Equal(t, int64(1), s.ID)
	require.Equal(t, int64(10), s.ChatID)
	require.False(t, s.Subscribed())
}

func TestSubscriber_SetState(t *testing.T) {
	s := NewSubscriber(1, 10)
	s.SetState(StateSubscribed)
	require.True(t, s.Subscribed())
}
