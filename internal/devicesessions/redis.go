package devicesessions

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/playgate/internal/policy"
)

// admitScript keeps one sorted set per rental: member = session id, score =
// expiry in unix millis. It prunes expired members, refreshes a member that
// is already present and adds a new one only while below the cap.
// Returns 1 for a new slot, 2 for a refreshed one and 0 when refused.
//
// KEYS[1] sessions key
// ARGV[1] now millis, ARGV[2] expiry millis, ARGV[3] cap, ARGV[4] session id, ARGV[5] key ttl millis
var admitScript = goredis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if redis.call("ZSCORE", KEYS[1], ARGV[4]) then
	redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
	redis.call("PEXPIRE", KEYS[1], ARGV[5])
	return 2
end
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

type redisStore interface {
	RunScript(ctx context.Context, script *goredis.Script, keys []string, args ...any) *goredis.Cmd
	ZRem(ctx context.Context, key string, members ...any) (int64, error)
	ZCount(ctx context.Context, key, min, max string) (int64, error)
	DeviceSessionsKey(rentalID string) string
}

// RedisLedger shares device slots across every API instance.
type RedisLedger struct {
	store redisStore
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisLedger builds a Redis-backed ledger.
func NewRedisLedger(store redisStore, ttl time.Duration, now func() time.Time) *RedisLedger {
	if now == nil {
		now = time.Now
	}
	return &RedisLedger{store: store, ttl: ttlOrDefault(ttl), now: now}
}

func (l *RedisLedger) Name() string { return "redis" }

const (
	scriptClaimed   = 1
	scriptRefreshed = 2
)

func (l *RedisLedger) Admit(ctx context.Context, rental policy.RentalRecord, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	now := l.now()
	key := l.store.DeviceSessionsKey(rental.ID.String())
	outcome, err := l.store.RunScript(ctx, admitScript, []string{key},
		now.UnixMilli(),
		now.Add(l.ttl).UnixMilli(),
		capOf(rental),
		sessionID,
		l.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, errUpstream(err, "admit")
	}
	switch outcome {
	case scriptClaimed:
		return true, nil
	case scriptRefreshed:
		return false, nil
	default:
		return false, errDeviceLimit(rental)
	}
}

func (l *RedisLedger) Release(ctx context.Context, rental policy.RentalRecord, sessionID string) error {
	if _, err := l.store.ZRem(ctx, l.store.DeviceSessionsKey(rental.ID.String()), sessionID); err != nil {
		return errUpstream(err, "release")
	}
	return nil
}

func (l *RedisLedger) Active(ctx context.Context, rental policy.RentalRecord) (int, error) {
	floor := "(" + strconv.FormatInt(l.now().UnixMilli(), 10)
	n, err := l.store.ZCount(ctx, l.store.DeviceSessionsKey(rental.ID.String()), floor, "+inf")
	if err != nil {
		return 0, errUpstream(err, "count")
	}
	return int(n), nil
}
