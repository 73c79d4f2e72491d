package app

import (
	"time"

	"fabric-qc/internal/domain/entity"
)

// TemporalFilter превращает поток результатов по кадрам в редкие события.
// Один дефект, видимый на нескольких кадрах подряд, считается один раз.
type TemporalFilter struct {
	Pacing entity.PacingConfig
}

// Step применяет результат кадра к состоянию и возвращает новое состояние.
// Событие возвращается только при засчитанном переходе в дефект,
// если сводка отличается от последней отправленной.
// Входное состояние не изменяется.
func (f TemporalFilter) Step(state entity.TemporalState, result *entity.DetectionResult, now time.Time) (entity.TemporalState, *entity.Event) {
	next := state.Clone()
	next.LastEvaluated = now
	next.LastStatus = result.Status()

	if result == nil || !result.IsDefective {
		next.Active = false
		next.Cooldown = f.Pacing.CooldownAfterPass
		return next, nil
	}

	next.Active = true
	next.Cooldown = f.Pacing.CooldownAfterDefect
	if state.Active {
		return next, nil
	}

	counted := state.LastActivation.IsZero() || now.Sub(state.LastActivation) > f.Pacing.MinInterEventGap
	next.LastActivation = now
	if !counted {
		return next, nil
	}

	next.TotalDefects++
	for label, n := range result.PerClassCounts {
		if n > 0 {
			next.PerClass[label] += n
		}
	}

	summary := next.Summary()
	if summary == state.LastEmittedStatus {
		return next, nil
	}
	next.LastEmittedStatus = summary

	perClass := make(map[string]int, len(next.PerClass))
	for k, v := range next.PerClass {
		perClass[k] = v
	}
	return next, &entity.Event{
		At:       now,
		Status:   entity.StatusDefective,
		Total:    next.TotalDefects,
		PerClass: perClass,
		Summary:  summary,
	}
}
