package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
)

const channelName = "console"

// Channel prints payloads to a writer, usually stdout.
type Channel struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

// NewChannel builds a console channel writing to out.
func NewChannel(out io.Writer, logger *slog.Logger) *Channel {
	if out == nil {
		out = io.Discard
	}
	return &Channel{out: out, logger: logger.With("component", "channel.console")}
}

func (c *Channel) Name() string { return channelName }

// Compose renders the printed line for payload.
func Compose(payload marsclock.Payload) string {
	parts := []string{payload.DateLabel, payload.Greeting}
	if payload.Claim != "" {
		parts = append(parts, payload.Claim)
	}
	return strings.Join(parts, " ")
}

func (c *Channel) Deliver(_ context.Context, payload marsclock.Payload) error {
	line := Compose(payload)
	c.mu.Lock()
	_, err := fmt.Fprintln(c.out, line)
	c.mu.Unlock()
	if err != nil {
		return marsclock.DeliveryError(channelName, err)
	}
	c.logger.Info("printed to console", "message", line)
	return nil
}
