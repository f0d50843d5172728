package cache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newMiniRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheWithConfig(&RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisSetOps(t *testing.T) {
	c, _ := newMiniRedisCache(t)
	ctx := context.Background()

	if err := c.SAdd(ctx, "plans", "a", "b"); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	if err := c.SAdd(ctx, "plans"); err != nil {
		t.Fatalf("expected empty sadd to be a no-op, got %v", err)
	}
	members, err := c.SMembers(ctx, "plans")
	sort.Strings(members)
	if err != nil || len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Fatalf("unexpected members %q %v", members, err)
	}
	if err := c.Del(ctx, "plans"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if members, _ := c.SMembers(ctx, "plans"); len(members) != 0 {
		t.Fatalf("expected deleted set, got %q", members)
	}
}

func TestRedisReplaceSet(t *testing.T) {
	c, mr := newMiniRedisCache(t)
	ctx := context.Background()

	if err := c.SAdd(ctx, "accepted", "old"); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	if err := c.ReplaceSet(ctx, "accepted", []string{"x", "y\nz"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	members, err := c.SMembers(ctx, "accepted")
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	sort.Strings(members)
	if len(members) != 2 || members[0] != "x" || members[1] != "y\nz" {
		t.Fatalf("unexpected members %q", members)
	}
	if err := c.ReplaceSet(ctx, "accepted", nil); err != nil {
		t.Fatalf("replace empty: %v", err)
	}
	if mr.Exists("accepted") {
		t.Fatalf("expected key to be removed")
	}
}

func TestRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if _, err := NewRedisCacheWithConfig(&RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping failure for unreachable redis")
	}
}
