package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	r, err := NewRedis("redis://"+mr.Addr(), "")
	if err != nil {
		mr.Close()
		t.Fatalf("NewRedis: %v", err)
	}
	return r, mr
}

func TestRedisGetMissing(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	if _, ok := r.Get(context.Background(), "pools"); ok {
		t.Error("Get should miss for a new key")
	}
}

func TestRedisSetAndGet(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	if err := r.Set(ctx, "pools", []byte(`[1,2]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := r.Get(ctx, "pools")
	if !ok || string(got) != `[1,2]` {
		t.Errorf("Get = %q, %v; want %q, true", got, ok, `[1,2]`)
	}
	if !mr.Exists("yield-optimizer:pools") {
		t.Error("key should be namespaced")
	}
}

func TestRedisTTLExpiry(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	_ = r.Set(ctx, "pools", []byte("x"), 30*time.Second)
	mr.FastForward(31 * time.Second)

	if _, ok := r.Get(ctx, "pools"); ok {
		t.Error("Get should miss after TTL")
	}
}

func TestRedisDelete(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	_ = r.Set(ctx, "pools", []byte("x"), 0)
	r.Delete(ctx, "pools")
	if _, ok := r.Get(ctx, "pools"); ok {
		t.Error("Get should miss after Delete")
	}
}

func TestRedisDeletePrefix(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	_ = r.Set(ctx, "asset:usdc", []byte("1"), 0)
	_ = r.Set(ctx, "asset:dai", []byte("2"), 0)
	_ = r.Set(ctx, "pools", []byte("3"), 0)

	if err := r.DeletePrefix(ctx, "asset:"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, ok := r.Get(ctx, "asset:usdc"); ok {
		t.Error("asset:usdc should be deleted")
	}
	if _, ok := r.Get(ctx, "asset:dai"); ok {
		t.Error("asset:dai should be deleted")
	}
	if _, ok := r.Get(ctx, "pools"); !ok {
		t.Error("pools should NOT be deleted")
	}
}

func TestRedisDownReadsAsMiss(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer r.Close()

	ctx := context.Background()
	_ = r.Set(ctx, "pools", []byte("x"), 0)
	mr.Close()

	if _, ok := r.Get(ctx, "pools"); ok {
		t.Error("Get should miss when Redis is down")
	}
	if err := r.Ping(ctx); err == nil {
		t.Error("Ping should fail when Redis is down")
	}
}

func TestNewRedisBadURL(t *testing.T) {
	if _, err := NewRedis("not-a-url", ""); err == nil {
		t.Error("NewRedis should reject an invalid URL")
	}
}

func TestMemorySetGetDelete(t *testing.T) {
	m, err := NewMemory(0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	if _, ok := m.Get(ctx, "pools"); ok {
		t.Error("Get should miss for a new key")
	}

	buf := []byte("payload")
	if err := m.Set(ctx, "pools", buf, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	buf[0] = 'X'

	got, ok := m.Get(ctx, "pools")
	if !ok || string(got) != "payload" {
		t.Errorf("Get = %q, %v; want %q, true", got, ok, "payload")
	}

	m.Delete(ctx, "pools")
	if _, ok := m.Get(ctx, "pools"); ok {
		t.Error("Get should miss after Delete")
	}
	if err := m.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemorySetRejectsOversizedValue(t *testing.T) {
	m, err := NewMemory(256)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	err = m.Set(ctx, "pools", make([]byte, 4096), time.Minute)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Set err = %v, want ErrRejected", err)
	}
	if _, ok := m.Get(ctx, "pools"); ok {
		t.Error("rejected value should not be readable")
	}
}
