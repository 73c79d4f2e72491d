// Package timeutil абстракция времени для конвейера и тестов.
package timeutil

import (
	"sync"
	"time"
)

// Clock источник текущего времени и таймеров.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time

	// Since возвращает время, прошедшее с t.
	Since(t time.Time) time.Duration

	// After отправляет текущее время в канал по истечении d.
	After(d time.Duration) <-chan time.Time
}

// RealClock системные часы.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MockClock часы, которые двигаются только вручную.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewMockClock создаёт часы, выставленные на t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now возвращает выставленное время.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since возвращает время, прошедшее с t по часам.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Set выставляет время без срабатывания ожиданий.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance сдвигает часы вперёд и будит истёкшие ожидания After.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	pending := c.waiters[:0]
	var fired []waiter
	for _, w := range c.waiters {
		if !w.at.After(now) {
			fired = append(fired, w)
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
	c.mu.Unlock()

	for _, w := range fired {
		w.ch <- now
	}
}

// After возвращает канал, который сработает после Advance на d и больше.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: c.now.Add(d), ch: ch})
	return ch
}

// Waiters возвращает число незавершённых ожиданий After.
func (c *MockClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
)
