package marsclock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/mars-clock/pkg/errors"
	"github.com/yanqian/mars-clock/pkg/util"
)

// Service is the Mars clock orchestrator.
type Service interface {
	// PostNow fetches one snapshot and fans the payload for mode out to
	// channels. Delivery failures are carried in the Report; the returned
	// error is reserved for a missing mode or a failed fetch.
	PostNow(ctx context.Context, mode Mode, channels []Channel) (Report, error)
	// RunDailyLoop announces every day transition until ctx is cancelled.
	RunDailyLoop(ctx context.Context, interval time.Duration, channels []Channel) error
	Status() Status
}

type service struct {
	source   TimeSource
	lock     DayLock
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	// opMu keeps at most one fetch and fan-out in flight.
	opMu sync.Mutex

	mu     sync.RWMutex
	status Status
}

// NewService wires up the clock orchestrator. lock may be nil.
func NewService(source TimeSource, lock DayLock, observer Observer, logger *slog.Logger) Service {
	if observer == nil {
		observer = NopObserver{}
	}
	return &service{
		source:   source,
		lock:     lock,
		observer: observer,
		logger:   logger.With("component", "marsclock.service"),
		now:      util.NowUTC,
		newID:    uuid.NewString,
	}
}

func (s *service) PostNow(ctx context.Context, mode Mode, channels []Channel) (Report, error) {
	if !mode.Valid() {
		return Report{}, missingMode(string(mode))
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("could not fetch mars time, nothing posted", "mode", mode, "error", err)
		return Report{}, err
	}
	payload, err := Forge(mode, snap)
	if err != nil {
		return Report{}, err
	}
	report := s.fanOut(ctx, mode, payload, channels)
	s.recordReport(report, false)
	return report, nil
}

func (s *service) RunDailyLoop(ctx context.Context, interval time.Duration, channels []Channel) error {
	if interval <= 0 {
		return apperrors.Wrap(CodeInvalidInput, "check interval must be positive", nil)
	}

	s.opMu.Lock()
	baseline, err := s.fetch(ctx)
	s.opMu.Unlock()
	if err != nil {
		return apperrors.Wrap(CodeBaselineUnavailable, "cannot establish baseline day", err)
	}
	lastSeenDay := baseline.Day
	s.setLastSeenDay(lastSeenDay)
	s.logger.Info("daily loop started", "baseline_day", lastSeenDay, "interval", interval.String(), "channels", len(channels))

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daily loop stopped", "last_seen_day", lastSeenDay)
			return ctx.Err()
		case <-timer.C:
		}

		lastSeenDay = s.tick(ctx, lastSeenDay, channels)
		if err := ctx.Err(); err != nil {
			s.logger.Info("daily loop stopped", "last_seen_day", lastSeenDay)
			return err
		}
		timer.Reset(interval)
	}
}

func (s *service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.status
	if out.LastSnapshot != nil {
		snap := *out.LastSnapshot
		out.LastSnapshot = &snap
	}
	if out.LastReport != nil {
		report := *out.LastReport
		report.Results = append([]DeliveryResult(nil), report.Results...)
		out.LastReport = &report
	}
	return out
}

// tick runs one loop iteration and returns the day the loop should remember.
func (s *service) tick(ctx context.Context, lastSeenDay int, channels []Channel) int {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("skipping tick, mars time unavailable", "last_seen_day", lastSeenDay, "error", err)
		}
		s.observer.TickCompleted(TickFetchFailed)
		return lastSeenDay
	}
	if snap.Day == lastSeenDay {
		s.logger.Debug("no day change", "day", snap.Day)
		s.observer.TickCompleted(TickSameDay)
		return lastSeenDay
	}

	s.logger.Info("day transition detected", "from", lastSeenDay, "to", snap.Day)
	payload := forgeDaily(snap)

	// The transition completes even if ctx is cancelled from here on.
	detached := context.WithoutCancel(ctx)
	eventID := s.newID()
	if s.claim(detached, payload.DateLabel, eventID) {
		report := s.fanOutEvent(detached, eventID, ModeDaily, payload, channels)
		s.recordReport(report, true)
		s.observer.TickCompleted(TickTransition)
	} else {
		s.logger.Info("day already announced by another instance", "date", payload.DateLabel)
		s.recordReport(Report{}, true)
		s.observer.TickCompleted(TickClaimedElsewhere)
	}

	s.setLastSeenDay(snap.Day)
	return snap.Day
}

func (s *service) claim(ctx context.Context, key, owner string) bool {
	if s.lock == nil {
		return true
	}
	ok, err := s.lock.Claim(ctx, key, owner)
	if err != nil {
		s.logger.Warn("day lock unavailable, announcing anyway", "date", key, "error", err)
		return true
	}
	return ok
}

func (s *service) fetch(ctx context.Context) (Snapshot, error) {
	snap, err := s.source.Fetch(ctx)
	checkedAt := s.now()
	if err != nil {
		s.observer.FetchCompleted(false)
		s.mu.Lock()
		s.status.LastCheckedAt = checkedAt
		s.mu.Unlock()
		if apperrors.IsCode(err, CodeFetchFailed) {
			return Snapshot{}, err
		}
		return Snapshot{}, FetchError("could not fetch mars time", err)
	}
	s.observer.FetchCompleted(true)
	s.mu.Lock()
	s.status.LastCheckedAt = checkedAt
	s.status.LastSnapshot = &snap
	s.mu.Unlock()
	return snap, nil
}

func (s *service) fanOut(ctx context.Context, mode Mode, payload Payload, channels []Channel) Report {
	return s.fanOutEvent(context.WithoutCancel(ctx), s.newID(), mode, payload, channels)
}

// fanOutEvent delivers payload to every channel in order. A failing channel
// never stops the channels after it.
func (s *service) fanOutEvent(ctx context.Context, eventID string, mode Mode, payload Payload, channels []Channel) Report {
	report := Report{
		EventID:   eventID,
		Mode:      mode,
		Payload:   payload,
		StartedAt: s.now(),
		Results:   make([]DeliveryResult, 0, len(channels)),
	}
	for _, ch := range channels {
		name := ch.Name()
		err := ch.Deliver(ctx, payload)
		if err != nil && !apperrors.IsCode(err, CodeDeliveryFailed) {
			err = DeliveryError(name, err)
		}
		report.Results = append(report.Results, DeliveryResult{Channel: name, Err: err})
		s.observer.Delivered(name, err == nil)
		if err != nil {
			s.logger.Warn("delivery failed", "event_id", eventID, "channel", name, "error", err)
			continue
		}
		s.logger.Info("delivered", "event_id", eventID, "channel", name, "date", payload.DateLabel)
	}

	if failed := report.Failed(); failed > 0 {
		s.logger.Warn("fan-out completed with failures", "event_id", eventID, "mode", mode, "delivered", report.Delivered(), "failed", failed, "error", report.Err())
	} else {
		s.logger.Info("fan-out completed", "event_id", eventID, "mode", mode, "delivered", report.Delivered())
	}
	return report
}

func (s *service) recordReport(report Report, transition bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transition {
		s.status.Transitions++
	}
	if report.EventID != "" {
		s.status.LastReport = &report
	}
}

func (s *service) setLastSeenDay(day int) {
	s.mu.Lock()
	s.status.HasBaseline = true
	s.status.LastSeenDay = day
	s.mu.Unlock()
	s.observer.DaySeen(day)
}
