package marsclock

import "context"

// TimeSource performs one round-trip to the Mars clock API per call.
type TimeSource interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Channel renders a payload and delivers it to one destination.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, payload Payload) error
}

// Channels is the ordered fan-out list.
type Channels []Channel

// DayLock lets several bot replicas agree on who announces a given day.
// Claim returns false when another holder already claimed key.
type DayLock interface {
	Claim(ctx context.Context, key, owner string) (bool, error)
}

// Observer receives loop events, typically to export them as metrics.
type Observer interface {
	FetchCompleted(ok bool)
	TickCompleted(outcome TickOutcome)
	Delivered(channel string, ok bool)
	DaySeen(day int)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) FetchCompleted(bool)       {}
func (NopObserver) TickCompleted(TickOutcome) {}
func (NopObserver) Delivered(string, bool)    {}
func (NopObserver) DaySeen(int)               {}
