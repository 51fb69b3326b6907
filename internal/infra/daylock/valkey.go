package daylock

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyLock records announced days in a Valkey-compatible database so that
// only the first replica to observe a transition posts it.
type ValkeyLock struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyLock constructs a lock backed by Valkey.
func NewValkeyLock(client valkey.Client, prefix string, ttl time.Duration) *ValkeyLock {
	if prefix == "" {
		prefix = "marsclock"
	}
	if ttl < time.Second {
		ttl = 36 * time.Hour
	}
	return &ValkeyLock{client: client, prefix: prefix, ttl: ttl}
}

// Claim stores owner under key unless another owner got there first.
func (l *ValkeyLock) Claim(ctx context.Context, key, owner string) (bool, error) {
	cmd := l.client.B().Set().Key(l.announcedKey(key)).Value(owner).Nx().ExSeconds(int64(l.ttl/time.Second)).Build()
	err := l.client.Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *ValkeyLock) announcedKey(key string) string {
	return l.prefix + ":announced:" + strings.TrimSpace(key)
}

// ParseOptions accepts either a bare host:port or a redis:// style URL.
func ParseOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
