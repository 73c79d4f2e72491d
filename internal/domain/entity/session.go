package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PacingConfig параметры темпа анализа. Конвейер только читает их.
type PacingConfig struct {
	CooldownAfterPass   time.Duration // пауза после кадра без дефекта
	CooldownAfterDefect time.Duration // пауза после кадра с дефектом
	MinInterEventGap    time.Duration // минимальный промежуток между событиями
	FrameSkipStride     int           // анализировать каждый N-й кадр
}

// DefaultPacing значения по умолчанию, как на производственной линии.
func DefaultPacing() PacingConfig {
	return PacingConfig{
		CooldownAfterPass:   5 * time.Second,
		CooldownAfterDefect: 5 * time.Second,
		MinInterEventGap:    time.Second,
		FrameSkipStride:     1,
	}
}

// TemporalState накопленное состояние сессии детекции.
type TemporalState struct {
	Active            bool           // последний проанализированный кадр дефектный
	LastActivation    time.Time      // момент последнего перехода в Active
	LastEvaluated     time.Time      // момент последнего запуска детектора
	Cooldown          time.Duration  // текущая пауза после LastEvaluated
	TotalDefects      int            // общее число событий-дефектов
	PerClass          map[string]int // накопленные счётчики по классам
	LastStatus        string         // статус последнего проанализированного кадра
	LastEmittedStatus string         // сводка последнего отправленного события
}

// NewTemporalState создаёт пустое состояние сессии.
func NewTemporalState() TemporalState {
	return TemporalState{PerClass: make(map[string]int)}
}

// Clone возвращает независимую копию состояния.
func (s TemporalState) Clone() TemporalState {
	cp := s
	cp.PerClass = make(map[string]int, len(s.PerClass))
	for k, v := range s.PerClass {
		cp.PerClass[k] = v
	}
	return cp
}

// InCooldown сообщает, действует ли пауза в момент now.
func (s TemporalState) InCooldown(now time.Time) bool {
	if s.LastEvaluated.IsZero() || s.Cooldown <= 0 {
		return false
	}
	return now.Sub(s.LastEvaluated) < s.Cooldown
}

// Summary форматирует накопленные счётчики в строку для событий.
func (s TemporalState) Summary() string {
	if len(s.PerClass) == 0 {
		return fmt.Sprintf("Defects: %d", s.TotalDefects)
	}
	return FormatCounts(s.PerClass)
}

// FormatCounts форматирует счётчики по классам в стабильном порядке.
func FormatCounts(counts map[string]int) string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s: %d", label, counts[label]))
	}
	return strings.Join(parts, ", ")
}
