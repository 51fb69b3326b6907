package marsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
)

const (
	defaultBaseURL = "https://marsapi.interimm.org/now"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 10
)

// BreakerConfig controls the circuit breaker guarding the API call.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Client fetches the current Mars time from the InterImm clock API.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds an API client. An empty url falls back to the public endpoint.
func NewClient(url string, timeout time.Duration, breaker BreakerConfig) *Client {
	endpoint := strings.TrimSpace(url)
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		url: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if breaker.Enabled {
		c.breaker = newBreaker(breaker)
	}
	return c
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	st := gobreaker.Settings{Name: "marsapi"}
	st.Timeout = cfg.Cooldown
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Fetch performs one GET and returns a fully populated snapshot, or a
// fetch_failed error. It never retries.
func (c *Client) Fetch(ctx context.Context) (marsclock.Snapshot, error) {
	if c.breaker == nil {
		return c.fetch(ctx)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return marsclock.Snapshot{}, marsclock.FetchError("mars api circuit open", err)
		}
		return marsclock.Snapshot{}, err
	}
	return out.(marsclock.Snapshot), nil
}

func (c *Client) fetch(ctx context.Context) (marsclock.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return marsclock.Snapshot{}, marsclock.FetchError("build mars api request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return marsclock.Snapshot{}, marsclock.FetchError("mars api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return marsclock.Snapshot{}, marsclock.FetchError(fmt.Sprintf("mars api error: status=%d body=%s", resp.StatusCode, string(payload)), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return marsclock.Snapshot{}, marsclock.FetchError("read mars api response", err)
	}
	return decodeSnapshot(body)
}

type apiResponse struct {
	InterImm *interImmTime `json:"interimm"`
}

// Pointer fields tell a missing key apart from a legitimate zero.
type interImmTime struct {
	Year   *int `json:"year"`
	Month  *int `json:"month"`
	Day    *int `json:"day"`
	Hour   *int `json:"hour"`
	Minute *int `json:"minute"`
}

func decodeSnapshot(body []byte) (marsclock.Snapshot, error) {
	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return marsclock.Snapshot{}, marsclock.FetchError("decode mars api response", err)
	}
	t := raw.InterImm
	if t == nil {
		return marsclock.Snapshot{}, marsclock.FetchError("mars api response has no interimm object", nil)
	}

	fields := []struct {
		name  string
		value *int
	}{
		{"year", t.Year}, {"month", t.Month}, {"day", t.Day}, {"hour", t.Hour}, {"minute", t.Minute},
	}
	var missing []string
	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return marsclock.Snapshot{}, marsclock.FetchError("mars api response missing fields: "+strings.Join(missing, ","), nil)
	}

	snap := marsclock.Snapshot{Year: *t.Year, Month: *t.Month, Day: *t.Day, Hour: *t.Hour, Minute: *t.Minute}
	if err := validate(snap); err != nil {
		return marsclock.Snapshot{}, marsclock.FetchError("mars api response out of range", err)
	}
	return snap, nil
}

func validate(s marsclock.Snapshot) error {
	switch {
	case s.Month < 1 || s.Month > 12:
		return fmt.Errorf("month %d", s.Month)
	case s.Day < 1:
		return fmt.Errorf("day %d", s.Day)
	case s.Hour < 0 || s.Hour > 23:
		return fmt.Errorf("hour %d", s.Hour)
	case s.Minute < 0 || s.Minute > 59:
		return fmt.Errorf("minute %d", s.Minute)
	}
	return nil
}
