package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event сообщение о новом дефекте для внешних подписчиков.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	At        time.Time      `json:"at"`
	Status    string         `json:"status"`
	Total     int            `json:"total"`
	PerClass  map[string]int `json:"per_class,omitempty"`
	Summary   string         `json:"summary"`
}
