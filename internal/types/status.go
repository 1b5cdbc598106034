package types

import (
	"sync"
	"time"
)

// BotStatus is an observable snapshot of the trading orchestrator.
type BotStatus struct {
	// IsRunning reports whether the orchestrator is in the Running state.
	IsRunning bool `yaml:"is_running" json:"is_running"`
	// StartTime is when the orchestrator last transitioned to Running.
	StartTime time.Time `yaml:"start_time" json:"start_time"`
	// ActivePositions counts currently open positions.
	ActivePositions int `yaml:"active_positions" json:"active_positions"`
	// TotalTrades counts all recorded trades.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// CurrentPnL is total realized plus unrealized PnL.
	CurrentPnL float64 `yaml:"current_pnl" json:"current_pnl"`
	// Errors holds the most recent error messages, oldest first.
	Errors []string `yaml:"errors" json:"errors"`
}

// ErrorRing is a bounded ring buffer of error messages. No error is
// silently dropped from the log stream; the ring only bounds what the
// status snapshot retains.
type ErrorRing struct {
	mu      sync.Mutex
	entries []string
	max     int
}

// NewErrorRing creates a ring retaining at most max entries.
func NewErrorRing(max int) *ErrorRing {
	return &ErrorRing{
		mu:      sync.Mutex{},
		entries: nil,
		max:     max,
	}
}

// Append records an error message, evicting the oldest entry when full.
func (r *ErrorRing) Append(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, msg)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

// Snapshot returns a copy of the retained messages, oldest first.
func (r *ErrorRing) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.entries))
	copy(out, r.entries)

	return out
}
