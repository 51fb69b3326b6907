package marsclock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/mars-clock/pkg/errors"
)

func TestPostNowDeliversToEveryChannelInOrder(t *testing.T) {
	var order []string
	first := &recordingChannel{name: "discord", order: &order}
	second := &recordingChannel{name: "console", order: &order}
	svc := newServiceUnderTest(&scriptedSource{steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Hour: 9, Minute: 41}},
	}}, nil)

	report, err := svc.PostNow(context.Background(), ModeCurrent, []Channel{first, second})
	require.NoError(t, err)
	require.Equal(t, []string{"discord", "console"}, order)
	require.Equal(t, 2, report.Delivered())
	require.Zero(t, report.Failed())
	require.NoError(t, report.Err())
	require.Equal(t, "test-event-1", report.EventID)

	want := Payload{DateLabel: "2024-03-05 09:41", Greeting: "In Isidis on Mars"}
	require.Equal(t, []Payload{want}, first.payloads)
	require.Equal(t, []Payload{want}, second.payloads)
}

func TestPostNowFetchFailureCallsNoChannel(t *testing.T) {
	ch := &recordingChannel{name: "discord"}
	svc := newServiceUnderTest(&scriptedSource{steps: []fetchStep{
		{err: errors.New("connection reset")},
	}}, nil)

	_, err := svc.PostNow(context.Background(), ModeCurrent, []Channel{ch})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, CodeFetchFailed))
	require.Empty(t, ch.payloads)
	require.Nil(t, svc.Status().LastReport)
}

func TestPostNowMissingModeFailsBeforeFetching(t *testing.T) {
	source := &scriptedSource{}
	svc := newServiceUnderTest(source, nil)

	_, err := svc.PostNow(context.Background(), "", []Channel{&recordingChannel{name: "console"}})
	require.True(t, apperrors.IsCode(err, CodeMissingMode))
	require.Zero(t, source.calls)
}

func TestPostNowContinuesPastFailingChannel(t *testing.T) {
	var order []string
	channels := []Channel{
		&recordingChannel{name: "a", order: &order},
		&recordingChannel{name: "b", order: &order, err: errors.New("status 500")},
		&recordingChannel{name: "c", order: &order},
	}
	svc := newServiceUnderTest(&scriptedSource{steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Hour: 9, Minute: 41}},
	}}, nil)

	report, err := svc.PostNow(context.Background(), ModeDaily, channels)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Equal(t, 2, report.Delivered())
	require.Equal(t, 1, report.Failed())
	require.True(t, apperrors.IsCode(report.Err(), CodeDeliveryFailed))
	require.Equal(t, "b", report.Results[1].Channel)
}

func TestRunDailyLoopAnnouncesTransitionOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Hour: 23, Minute: 58}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Hour: 23, Minute: 59}},
		{err: errors.New("timeout")},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6, Hour: 0, Minute: 1}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6, Hour: 0, Minute: 2}},
	}}
	discord := &recordingChannel{name: "discord"}
	mastodon := &recordingChannel{name: "mastodon"}
	observer := &countingObserver{}
	svc := newServiceUnderTest(source, nil)
	svc.observer = observer

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{discord, mastodon})
	require.ErrorIs(t, err, context.Canceled)

	want := Payload{DateLabel: "2024-03-06", Greeting: "Have a great day!", Claim: "It's a new day on Mars!"}
	require.Equal(t, []Payload{want}, discord.payloads)
	require.Equal(t, []Payload{want}, mastodon.payloads)

	status := svc.Status()
	require.True(t, status.HasBaseline)
	require.Equal(t, 6, status.LastSeenDay)
	require.Equal(t, 1, status.Transitions)
	require.Equal(t, 1, observer.outcomes[TickTransition])
	require.Equal(t, 2, observer.outcomes[TickSameDay])
	require.GreaterOrEqual(t, observer.outcomes[TickFetchFailed], 1)
	require.Equal(t, source.calls-1, observer.total(), "every tick records exactly one outcome")
}

func TestRunDailyLoopSameDayNeverDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Minute: 1}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5, Minute: 2}},
	}}
	ch := &recordingChannel{name: "console"}
	svc := newServiceUnderTest(source, nil)

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{ch})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ch.payloads)
	require.Zero(t, svc.Status().Transitions)
}

func TestRunDailyLoopAdvancesDayDespiteDeliveryFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6}},
	}}
	failing := &recordingChannel{name: "discord", err: errors.New("webhook gone")}
	after := &recordingChannel{name: "console"}
	svc := newServiceUnderTest(source, nil)

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{failing, after})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, failing.payloads, 1)
	require.Len(t, after.payloads, 1)
	status := svc.Status()
	require.Equal(t, 6, status.LastSeenDay)
	require.Equal(t, 1, status.Transitions)
	require.NotNil(t, status.LastReport)
	require.Equal(t, 1, status.LastReport.Failed())
}

func TestRunDailyLoopBaselineFailureIsFatal(t *testing.T) {
	ch := &recordingChannel{name: "console"}
	svc := newServiceUnderTest(&scriptedSource{steps: []fetchStep{
		{err: errors.New("no route to host")},
	}}, nil)

	err := svc.RunDailyLoop(context.Background(), time.Millisecond, []Channel{ch})
	require.True(t, apperrors.IsCode(err, CodeBaselineUnavailable))
	require.True(t, apperrors.IsCode(err, CodeFetchFailed))
	require.Empty(t, ch.payloads)
	require.False(t, svc.Status().HasBaseline)
}

func TestRunDailyLoopRejectsNonPositiveInterval(t *testing.T) {
	svc := newServiceUnderTest(&scriptedSource{}, nil)
	err := svc.RunDailyLoop(context.Background(), 0, nil)
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
	require.Zero(t, svc.source.(*scriptedSource).calls)
}

func TestRunDailyLoopFinishesFanOutWhenCancelledMidDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 30, Hour: 23, Minute: 59}},
		{snap: Snapshot{Year: 2024, Month: 4, Day: 1, Hour: 0, Minute: 1}},
	}}
	first := &recordingChannel{name: "discord", onDeliver: cancel}
	second := &recordingChannel{name: "mastodon"}
	svc := newServiceUnderTest(source, nil)

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{first, second})
	require.ErrorIs(t, err, context.Canceled)

	want := Payload{DateLabel: "2024-04-01", Greeting: "Have a great day!", Claim: "It's a new day on Mars!"}
	require.Equal(t, []Payload{want}, first.payloads)
	require.Equal(t, []Payload{want}, second.payloads)
	require.Equal(t, []error{nil}, second.ctxErrs)
	require.Equal(t, 2, source.calls)

	status := svc.Status()
	require.Equal(t, 1, status.LastSeenDay)
	require.Equal(t, 1, status.Transitions)
	require.NotNil(t, status.LastReport)
	require.Equal(t, 2, status.LastReport.Delivered())
}

func TestRunDailyLoopSkipsFanOutWhenDayClaimedElsewhere(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6}},
	}}
	ch := &recordingChannel{name: "console"}
	lock := &stubLock{claimed: map[string]bool{"2024-03-06": true}}
	svc := newServiceUnderTest(source, lock)

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{ch})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ch.payloads)
	require.Equal(t, 6, svc.Status().LastSeenDay)
	require.Equal(t, []string{"2024-03-06"}, lock.keys)
}

func TestRunDailyLoopAnnouncesWhenLockErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &scriptedSource{cancel: cancel, steps: []fetchStep{
		{snap: Snapshot{Year: 2024, Month: 3, Day: 5}},
		{snap: Snapshot{Year: 2024, Month: 3, Day: 6}},
	}}
	ch := &recordingChannel{name: "console"}
	svc := newServiceUnderTest(source, &stubLock{err: errors.New("valkey down")})

	err := svc.RunDailyLoop(ctx, time.Millisecond, []Channel{ch})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, ch.payloads, 1)
}

func newServiceUnderTest(source TimeSource, lock DayLock) *service {
	var seq int
	return &service{
		source:   source,
		lock:     lock,
		observer: NopObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time {
			return time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
		},
		newID: func() string {
			seq++
			return "test-event-" + string(rune('0'+seq))
		},
	}
}

type fetchStep struct {
	snap Snapshot
	err  error
}

// scriptedSource replays steps and cancels the loop once they run out.
type scriptedSource struct {
	steps  []fetchStep
	cancel context.CancelFunc
	calls  int
}

func (s *scriptedSource) Fetch(ctx context.Context) (Snapshot, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.steps) {
		if s.cancel != nil {
			s.cancel()
		}
		return Snapshot{}, context.Canceled
	}
	step := s.steps[idx]
	return step.snap, step.err
}

type recordingChannel struct {
	name      string
	err       error
	order     *[]string
	onDeliver func()
	payloads  []Payload
	ctxErrs   []error
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(ctx context.Context, payload Payload) error {
	c.payloads = append(c.payloads, payload)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	if c.onDeliver != nil {
		c.onDeliver()
	}
	if c.order != nil {
		*c.order = append(*c.order, c.name)
	}
	return c.err
}

type stubLock struct {
	claimed map[string]bool
	err     error
	keys    []string
}

func (l *stubLock) Claim(ctx context.Context, key, owner string) (bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	return !l.claimed[key], nil
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[TickOutcome]int
}

func (o *countingObserver) FetchCompleted(bool) {}

func (o *countingObserver) TickCompleted(outcome TickOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[TickOutcome]int)
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, count := range o.outcomes {
		n += count
	}
	return n
}

func (o *countingObserver) Delivered(string, bool) {}

func (o *countingObserver) DaySeen(int) {}
