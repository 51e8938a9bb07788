package core

import (
	"fmt"
	"sync"
)

// TurnLimiter bounds the number of supervisor decisions in one run.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing max turns. max <= 0 means
// unlimited, which callers should avoid for model-driven loops.
func NewTurnLimiter(max int) *TurnLimiter {
	return &TurnLimiter{max: max}
}

// Increment consumes one turn. It returns an error wrapping
// ErrTurnLimitExceeded when the ceiling has already been reached; the count
// is left unchanged in that case.
func (l *TurnLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return fmt.Errorf("%w: %d", ErrTurnLimitExceeded, l.max)
	}

	l.count++

	return nil
}

// Count returns the number of turns consumed.
func (l *TurnLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many turns are left, or -1 when unlimited.
func (l *TurnLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return -1
	}

	return l.max - l.count
}

// Max returns the configured ceiling.
func (l *TurnLimiter) Max() int { return l.max }
