package model

import "time"

// Circuit modes.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
)

// CircuitState is a point-in-time view of one dependency's breaker.
type CircuitState struct {
	Dependency           string    `json:"dependency"`
	Mode                 string    `json:"mode"`
	ConsecutiveFailures  uint32    `json:"consecutiveFailures"`
	ConsecutiveSuccesses uint32    `json:"consecutiveSuccesses"`
	FailureThreshold     uint32    `json:"failureThreshold"`
	OpenDuration         string    `json:"openDuration"`
	ChangedAt            time.Time `json:"changedAt,omitempty"`
}
