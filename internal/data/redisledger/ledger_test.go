package redisledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/domain/jobs"
	"github.com/yungbote/marketplace-backend/internal/platform/redis"
)

func TestLedgerDefaults(t *testing.T) {
	l := NewLedger(nil, nil, redis.Config{})
	if l.ttl != defaultLedgerTTL {
		t.Fatalf("ttl: want=%s got=%s", defaultLedgerTTL, l.ttl)
	}
	if got := l.key("Marketplace.AddListing:a:k"); got != "marketplace:sync_run:Marketplace.AddListing:a:k" {
		t.Fatalf("key: got=%s", got)
	}
	if _, err := l.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error without a client")
	}
	if _, err := l.Claim(context.Background(), &types.SyncRun{Key: "k"}); err == nil {
		t.Fatalf("expected claim error without a client")
	}
}

func TestLedgerRoundTripIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, nil, redis.Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewLedger(nil, rdb, redis.Config{KeyPrefix: "test-" + uuid.NewString()[:8], LedgerTTL: time.Minute})
	key := jobs.ScopedKey("Marketplace.AddListing", uuid.New(), "k1")

	got, err := l.Get(ctx, key)
	if err != nil || got != nil {
		t.Fatalf("missing key: got=%+v err=%v", got, err)
	}
	run := &types.SyncRun{ID: uuid.New(), Key: key, Status: types.SyncRunPartial, ResultID: uuid.New()}
	run.MarkStep("create_product")
	if err := l.Put(ctx, run); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = l.Get(ctx, key)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}
	if !got.StepDone("create_product") || got.ResultID != run.ResultID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if ttl := rdb.TTL(ctx, l.key(key)).Val(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl: got=%s", ttl)
	}
}

func TestLedgerClaimIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, nil, redis.Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewLedger(nil, rdb, redis.Config{KeyPrefix: "test-" + uuid.NewString()[:8], LedgerTTL: time.Minute})
	key := jobs.ScopedKey("Marketplace.CreateOrder", uuid.New(), "k1")

	first := &types.SyncRun{ID: uuid.New(), Key: key, Status: types.SyncRunRunning}
	second := &types.SyncRun{ID: uuid.New(), Key: key, Status: types.SyncRunRunning}
	won, err := l.Claim(ctx, first)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = l.Claim(ctx, second)
	if err != nil || won {
		t.Fatalf("second claim: want lost got won=%v err=%v", won, err)
	}

	if err := l.Release(ctx, second); err != nil {
		t.Fatalf("Release(other): %v", err)
	}
	if got, _ := l.Get(ctx, key); got == nil || got.ID != first.ID {
		t.Fatalf("a foreign release must not drop the claim: %+v", got)
	}
	if err := l.Release(ctx, first); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, _ := l.Get(ctx, key); got != nil {
		t.Fatalf("claim should be gone: %+v", got)
	}
}
