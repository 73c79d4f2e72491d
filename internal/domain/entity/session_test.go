package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTemporalStateClone(t *testing.T) {
	s := NewTemporalState()
	s.PerClass["hole"] = 2

	cp := s.Clone()
	cp.PerClass["hole"] = 5
	cp.PerClass["stain"] = 1

	require.Equal(t, 2, s.PerClass["hole"])
	require.NotContains(t, s.PerClass, "stain")
}

func TestTemporalStateInCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewTemporalState()
	require.False(t, s.InCooldown(now))

	s.LastEvaluated = now
	s.Cooldown = 2 * time.Second
	require.True(t, s.InCooldown(now.Add(time.Second)))
	require.False(t, s.InCooldown(now.Add(2*time.Second)))
}

func TestTemporalStateSummary(t *testing.T) {
	s := NewTemporalState()
	s.TotalDefects = 3
	require.Equal(t, "Defects: 3", s.Summary())

	s.PerClass["stain"] = 1
	s.PerClass["hole"] = 2
	require.Equal(t, "hole: 2, stain: 1", s.Summary())
}
