package redisledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
	"github.com/yungbote/marketplace-backend/internal/platform/redis"
)

const defaultLedgerTTL = 24 * time.Hour

// releaseScript deletes the key only while it still holds the caller's
// unstarted claim.
var releaseScript = goredis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local run = cjson.decode(raw)
if run.id == ARGV[1] and run.status == ARGV[2] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Ledger keeps keyed-operation progress in Redis. Rows expire after ttl, so a
// replay older than that starts over.
type Ledger struct {
	log    *logger.Logger
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewLedger(log *logger.Logger, rdb goredis.Cmdable, cfg redis.Config) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "marketplace"
	}
	ttl := cfg.LedgerTTL
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &Ledger{
		log:    log.With("ledger", "RedisLedger"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (l *Ledger) key(k string) string {
	return l.prefix + ":sync_run:" + k
}

func (l *Ledger) Get(ctx context.Context, key string) (*types.SyncRun, error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis ledger not initialized")
	}
	raw, err := l.rdb.Get(ctx, l.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run types.SyncRun
	if err := json.Unmarshal(raw, &run); err != nil {
		l.log.Warn("bad ledger payload, ignoring", "key", key, "error", err)
		return nil, nil
	}
	return &run, nil
}

// Claim stores run with SET NX and reports whether this caller owns the key.
func (l *Ledger) Claim(ctx context.Context, run *types.SyncRun) (bool, error) {
	raw, err := l.encode(run)
	if err != nil {
		return false, err
	}
	return l.rdb.SetNX(ctx, l.key(run.Key), raw, l.ttl).Result()
}

func (l *Ledger) Put(ctx context.Context, run *types.SyncRun) error {
	raw, err := l.encode(run)
	if err != nil {
		return err
	}
	return l.rdb.Set(ctx, l.key(run.Key), raw, l.ttl).Err()
}

func (l *Ledger) Release(ctx context.Context, run *types.SyncRun) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis ledger not initialized")
	}
	if run == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{l.key(run.Key)}, run.ID.String(), types.SyncRunRunning).Err()
}

func (l *Ledger) encode(run *types.SyncRun) ([]byte, error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis ledger not initialized")
	}
	if run == nil || strings.TrimSpace(run.Key) == "" {
		return nil, fmt.Errorf("ledger run requires a key")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	return json.Marshal(run)
}
