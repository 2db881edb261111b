// Package watch defines the watch lifecycle model and its durable store.
package watch

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status constants for watches. A watch starts active; the other three states
// are terminal.
const (
	StatusActive    = "active"    // Being polled on schedule
	StatusFired     = "fired"     // Trigger condition met, action executed
	StatusExpired   = "expired"   // TTL elapsed without firing
	StatusCancelled = "cancelled" // Cancelled via the control surface
)

// Watch pairs a trigger condition with an action to run once the condition
// is met. Status only ever moves active -> {fired|expired|cancelled};
// FiredAt is non-nil iff Status is fired.
type Watch struct {
	ID              string     `json:"id"`
	Trigger         string     `json:"trigger"`
	Params          []string   `json:"params"`
	PromptTemplate  string     `json:"prompt_template"`
	WorkingDir      string     `json:"working_dir,omitempty"`
	Status          string     `json:"status"`
	IntervalSeconds int        `json:"interval_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	FiredAt         *time.Time `json:"fired_at,omitempty"`
}

// Interval returns the polling cadence as a duration.
func (w *Watch) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// Terminal reports whether the watch is in a terminal state.
func (w *Watch) Terminal() bool {
	return w.Status != StatusActive
}

// ValidStatus reports whether s names a known watch status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusFired, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// NewID generates a watch identifier, WCH_ followed by 12 hex characters.
func NewID() string {
	return "WCH_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
