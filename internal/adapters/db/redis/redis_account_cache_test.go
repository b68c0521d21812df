package redis

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/memory"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingRepo struct {
	*memory.AccountRepo
	finds atomic.Int32
}

func (c *countingRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	c.finds.Add(1)
	return c.AccountRepo.FindByEmail(ctx, email)
}

func newRepo(t *testing.T) (*CachedAccountRepo, *countingRepo, *miniredis.Miniredis) {
	repo, inner, mr, _ := newObservedRepo(t)
	return repo, inner, mr
}

func newObservedRepo(t *testing.T) (*CachedAccountRepo, *countingRepo, *miniredis.Miniredis, *observer.ObservedLogs) {
	mr := miniredis.RunT(t)

	client := redisv9.NewClient(&redisv9.Options{
		Addr:                  mr.Addr(),
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zapcore.WarnLevel)
	inner := &countingRepo{AccountRepo: memory.NewAccountRepo()}
	return NewCachedAccountRepo(inner, client, 10*time.Minute, zap.New(core)), inner, mr, logs
}

func TestCachedAccountRepo_InsertWritesThrough(t *testing.T) {
	repo, inner, mr := newRepo(t)
	ctx := context.Background()

	a, err := repo.Insert(ctx, "a@x.com", "Ann", "digest")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	raw, err := mr.Get(keyPrefix + "a@x.com")
	if err != nil {
		t.Fatalf("key not cached: %v", err)
	}
	var cached model.Account
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("cached value: %v", err)
	}
	if cached.ID != a.ID || cached.PasswordHash != "digest" {
		t.Fatalf("cached %+v, inserted %+v", cached, a)
	}
	if ttl := mr.TTL(keyPrefix + "a@x.com"); ttl != 10*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	got, err := repo.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("got %q, want %q", got.ID, a.ID)
	}
	if n := inner.finds.Load(); n != 0 {
		t.Fatalf("store consulted %d times on a cache hit", n)
	}
}

func TestCachedAccountRepo_ReadThrough(t *testing.T) {
	repo, inner, mr := newRepo(t)
	ctx := context.Background()

	if _, err := inner.Insert(ctx, "b@x.com", "Bob", "digest"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := repo.FindByEmail(ctx, "b@x.com"); err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
	}
	if n := inner.finds.Load(); n != 1 {
		t.Fatalf("store consulted %d times, want 1", n)
	}
	if !mr.Exists(keyPrefix + "b@x.com") {
		t.Fatal("account should be cached after the first read")
	}
}

func TestCachedAccountRepo_MissNotCached(t *testing.T) {
	repo, inner, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@x.com")
	if !customErrors.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	if mr.Exists(keyPrefix + "nobody@x.com") {
		t.Fatal("absent accounts must not be cached")
	}

	// the account appears in the store after the miss
	if _, err := inner.Insert(ctx, "nobody@x.com", "Nob", "digest"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "nobody@x.com"); err != nil {
		t.Fatalf("FindByEmail after insert: %v", err)
	}
}

func TestCachedAccountRepo_ConflictPassesThrough(t *testing.T) {
	repo, _, _ := newRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "c@x.com", "Cat", "d1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := repo.Insert(ctx, "c@x.com", "Cat", "d2")
	if !customErrors.IsConflict(err) {
		t.Fatalf("want conflict, got %v", err)
	}

	got, err := repo.FindByEmail(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.PasswordHash != "d1" {
		t.Fatal("losing insert must not overwrite the cached account")
	}
}

func TestCachedAccountRepo_CacheDown(t *testing.T) {
	repo, inner, mr, logs := newObservedRepo(t)
	ctx := context.Background()

	if _, err := inner.Insert(ctx, "d@x.com", "Dan", "digest"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	mr.Close()

	if _, err := repo.FindByEmail(ctx, "d@x.com"); err != nil {
		t.Fatalf("store should still answer with the cache down: %v", err)
	}
	if n := logs.FilterMessage("account cache read failed").Len(); n != 1 {
		t.Fatalf("read failure logged %d times, want 1", n)
	}
	if n := logs.FilterMessage("account cache write failed").Len(); n != 1 {
		t.Fatalf("write failure logged %d times, want 1", n)
	}
}

// blackHole accepts connections and never answers.
func blackHole(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = lis.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return lis.Addr().String()
}

func TestCachedAccountRepo_UnresponsiveCacheKeepsStoreBudget(t *testing.T) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:                  blackHole(t),
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zapcore.WarnLevel)
	inner := &countingRepo{AccountRepo: memory.NewAccountRepo()}
	repo := NewCachedAccountRepo(inner, client, time.Minute, zap.New(core), WithTimeout(50*time.Millisecond))

	if _, err := inner.Insert(context.Background(), "f@x.com", "Fay", "digest"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// the caller's whole budget is far shorter than any redis client default
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	got, err := repo.FindByEmail(ctx, "f@x.com")
	if err != nil {
		t.Fatalf("store must still be reached in time: %v", err)
	}
	if got.Name != "Fay" {
		t.Fatalf("got %+v", got)
	}
	if logs.FilterMessage("account cache read failed").Len() != 1 {
		t.Fatal("cache timeout should be logged")
	}
}

func TestCachedAccountRepo_CorruptEntry(t *testing.T) {
	repo, inner, mr, logs := newObservedRepo(t)
	ctx := context.Background()

	if _, err := inner.Insert(ctx, "e@x.com", "Eve", "digest"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mr.Set(keyPrefix+"e@x.com", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "e@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.Name != "Eve" {
		t.Fatalf("got %+v", got)
	}
	if inner.finds.Load() != 1 {
		t.Fatal("corrupt entry should fall through to the store")
	}
	if logs.FilterMessage("account cache entry unreadable").Len() != 1 {
		t.Fatal("corrupt entry should be logged")
	}
}
