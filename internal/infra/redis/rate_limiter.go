package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter is a fixed-window counter per key. Windows are evicted by key TTL,
// so memory is bounded by the number of clients seen within one window.
type RateLimiter struct {
	client *Client
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// INCR and PEXPIRE run in one script so a key never survives without a TTL.
var luaFixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}`)

// Allow counts one hit for key. When the limit is exceeded it returns false and the
// time left until the window resets.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := luaFixedWindow.Run(ctx, r.client.cli, []string{ClientKey(r.prefix, key)}, r.window.Milliseconds()).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	count, _ := res[0].(int64)
	ttl, _ := res[1].(int64)
	if count > int64(r.limit) {
		retry := time.Duration(ttl) * time.Millisecond
		if retry <= 0 {
			retry = r.window
		}
		return false, retry, nil
	}
	return true, 0, nil
}

func ClientKey(prefix, client string) string {
	return fmt.Sprintf("rate_limit:%s:%s", prefix, client)
}
