package marsclock

import (
	"errors"
	"strings"
	"time"
)

// Snapshot is one reading of the remote Mars clock. A Snapshot handed out by a
// TimeSource always has every field populated; a failed fetch is reported as an
// error instead.
type Snapshot struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Payload is the channel-agnostic message derived from a Snapshot and a Mode.
type Payload struct {
	DateLabel string `json:"dateLabel"`
	Greeting  string `json:"greeting"`
	Claim     string `json:"claim"`
}

// Mode selects the forging rule applied to a Snapshot.
type Mode string

const (
	ModeCurrent Mode = "current"
	ModeDaily   Mode = "daily"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeCurrent || m == ModeDaily
}

// ParseMode maps user input onto a Mode. Empty or unknown input is a
// missing_mode error.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if !mode.Valid() {
		return "", missingMode(raw)
	}
	return mode, nil
}

// DeliveryResult is the outcome of handing one payload to one channel.
type DeliveryResult struct {
	Channel string
	Err     error
}

// Report summarizes one fan-out.
type Report struct {
	EventID   string
	Mode      Mode
	Payload   Payload
	StartedAt time.Time
	Results   []DeliveryResult
}

// Delivered counts channels that accepted the payload.
func (r Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts channels whose delivery returned an error.
func (r Report) Failed() int {
	return len(r.Results) - r.Delivered()
}

// Err joins every delivery failure, or returns nil when all channels succeeded.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Status is a point-in-time view of the clock loop, safe to hand to readers
// outside the loop goroutine.
type Status struct {
	HasBaseline   bool
	LastSeenDay   int
	LastCheckedAt time.Time
	LastSnapshot  *Snapshot
	LastReport    *Report
	Transitions   int
}

// TickOutcome classifies a single iteration of the daily loop.
type TickOutcome string

const (
	TickSameDay          TickOutcome = "same_day"
	TickFetchFailed      TickOutcome = "fetch_failed"
	TickTransition       TickOutcome = "transition"
	TickClaimedElsewhere TickOutcome = "claimed_elsewhere"
)
