package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fabric-qc/internal/domain/entity"
)

var t0 = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)

func defective(counts map[string]int) *entity.DetectionResult {
	return &entity.DetectionResult{
		IsDefective:    true,
		Boxes:          []entity.BoundingBox{{XMax: 1, YMax: 1}},
		PerClassCounts: counts,
	}
}

func clean() *entity.DetectionResult {
	return &entity.DetectionResult{}
}

func gapOnly(gap time.Duration) TemporalFilter {
	return TemporalFilter{Pacing: entity.PacingConfig{MinInterEventGap: gap, FrameSkipStride: 1}}
}

func TestTemporalFilter_FirstDefectEmits(t *testing.T) {
	f := gapOnly(time.Second)

	state, ev := f.Step(entity.NewTemporalState(), defective(nil), t0)
	require.NotNil(t, ev)
	require.True(t, state.Active)
	require.Equal(t, 1, state.TotalDefects)
	require.Equal(t, 1, ev.Total)
	require.Equal(t, "Defects: 1", ev.Summary)
	require.Equal(t, entity.StatusDefective, ev.Status)
	require.Equal(t, t0, ev.At)
	require.Equal(t, entity.StatusDefective, state.LastStatus)
	require.Equal(t, "Defects: 1", state.LastEmittedStatus)

	// дефект на следующем кадре это тот же дефект
	state, ev = f.Step(state, defective(nil), t0.Add(2*time.Second))
	require.Nil(t, ev)
	require.Equal(t, 1, state.TotalDefects)

	state, ev = f.Step(state, clean(), t0.Add(3*time.Second))
	require.Nil(t, ev)
	require.False(t, state.Active)
	require.Equal(t, entity.StatusPassed, state.LastStatus)

	state, ev = f.Step(state, defective(nil), t0.Add(5*time.Second))
	require.NotNil(t, ev)
	require.Equal(t, 2, state.TotalDefects)
	require.Equal(t, "Defects: 2", ev.Summary)
}

func TestTemporalFilter_DebouncesFlicker(t *testing.T) {
	f := gapOnly(time.Second)
	state := entity.NewTemporalState()

	events := 0
	now := t0
	for i := 0; i < 20; i++ {
		result := clean()
		if i%2 == 0 {
			result = defective(nil)
		}
		var ev *entity.Event
		state, ev = f.Step(state, result, now)
		if ev != nil {
			events++
		}
		now = now.Add(200 * time.Millisecond)
	}
	require.Equal(t, 1, events, "flicker faster than the gap is one defect")
	require.Equal(t, 1, state.TotalDefects)

	state, ev := f.Step(state, clean(), now)
	require.Nil(t, ev)
	state, ev = f.Step(state, defective(nil), now.Add(1500*time.Millisecond))
	require.NotNil(t, ev)
	require.Equal(t, 2, state.TotalDefects)
}

func TestTemporalFilter_AtMostOneEventPerGap(t *testing.T) {
	f := gapOnly(time.Second)
	state := entity.NewTemporalState()

	var emitted []time.Time
	now := t0
	pattern := []bool{true, false, false, true, false, true, true, false, false, false, false, false, true, false, true}
	for _, isDefect := range pattern {
		result := clean()
		if isDefect {
			result = defective(nil)
		}
		var ev *entity.Event
		state, ev = f.Step(state, result, now)
		if ev != nil {
			emitted = append(emitted, ev.At)
		}
		now = now.Add(300 * time.Millisecond)
	}
	require.NotEmpty(t, emitted)
	for i := 1; i < len(emitted); i++ {
		require.Greater(t, emitted[i].Sub(emitted[i-1]), time.Second)
	}
}

func TestTemporalFilter_CountsAreMonotonic(t *testing.T) {
	f := gapOnly(0)
	state := entity.NewTemporalState()
	results := []*entity.DetectionResult{
		defective(map[string]int{"hole": 1}), clean(),
		defective(map[string]int{"stain": 2}), defective(map[string]int{"hole": 3}), clean(),
		clean(), defective(map[string]int{"hole": 1, "stain": 1}), clean(),
	}

	now := t0
	for _, r := range results {
		prev := state.Clone()
		state, _ = f.Step(state, r, now)
		require.GreaterOrEqual(t, state.TotalDefects, prev.TotalDefects)
		for label, n := range prev.PerClass {
			require.GreaterOrEqual(t, state.PerClass[label], n)
		}
		now = now.Add(time.Second)
	}
	require.Equal(t, 3, state.TotalDefects)
	require.Equal(t, map[string]int{"hole": 2, "stain": 3}, state.PerClass)
}

func TestTemporalFilter_PerClassSummary(t *testing.T) {
	f := gapOnly(time.Second)

	state, ev := f.Step(entity.NewTemporalState(), defective(map[string]int{"hole": 2}), t0)
	require.NotNil(t, ev)
	require.Equal(t, "hole: 2", ev.Summary)
	require.Equal(t, map[string]int{"hole": 2}, ev.PerClass)

	state, _ = f.Step(state, clean(), t0.Add(time.Second))
	state, ev = f.Step(state, defective(map[string]int{"stain": 1}), t0.Add(3*time.Second))
	require.NotNil(t, ev)
	require.Equal(t, "hole: 2, stain: 1", ev.Summary)
	require.Equal(t, 2, ev.Total)

	// событие хранит свою копию счётчиков
	ev.PerClass["hole"] = 100
	require.Equal(t, 2, state.PerClass["hole"])
}

func TestTemporalFilter_SameSummaryNotEmitted(t *testing.T) {
	f := gapOnly(time.Second)
	state := entity.NewTemporalState()
	state.LastEmittedStatus = "Defects: 1"

	next, ev := f.Step(state, defective(nil), t0)
	require.Nil(t, ev)
	require.Equal(t, 1, next.TotalDefects)
}

func TestTemporalFilter_Cooldown(t *testing.T) {
	f := TemporalFilter{Pacing: entity.PacingConfig{
		CooldownAfterPass:   2 * time.Second,
		CooldownAfterDefect: 5 * time.Second,
		FrameSkipStride:     1,
	}}

	state, _ := f.Step(entity.NewTemporalState(), defective(nil), t0)
	require.Equal(t, 5*time.Second, state.Cooldown)
	require.Equal(t, t0, state.LastEvaluated)
	require.True(t, state.InCooldown(t0.Add(4*time.Second)))
	require.False(t, state.InCooldown(t0.Add(5*time.Second)))

	state, _ = f.Step(state, clean(), t0.Add(5*time.Second))
	require.Equal(t, 2*time.Second, state.Cooldown)
	require.True(t, state.InCooldown(t0.Add(6*time.Second)))
	require.False(t, state.InCooldown(t0.Add(7*time.Second)))
}

func TestTemporalFilter_DoesNotMutateInput(t *testing.T) {
	f := gapOnly(0)
	state := entity.NewTemporalState()
	state.PerClass["hole"] = 1

	next, _ := f.Step(state, defective(map[string]int{"hole": 1}), t0)
	require.Equal(t, 2, next.PerClass["hole"])
	require.Equal(t, 1, state.PerClass["hole"])
	require.Zero(t, state.TotalDefects)
	require.False(t, state.Active)
}
