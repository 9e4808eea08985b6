package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemory_SetGetExpire(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(clock.now)
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.advance(29 * time.Second)
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q %v", got, err)
	}

	clock.advance(time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry at ttl, got %v", err)
	}
}

func TestMemory_NoExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(clock.now)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	clock.advance(365 * 24 * time.Hour)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("zero ttl must not expire: %v", err)
	}
	c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemory_IncrFixedWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemory(clock.now)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "w", time.Minute)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
		clock.advance(15 * time.Second)
	}

	// Window started at the first increment; later increments do not extend it.
	clock.advance(15 * time.Second)
	n, _ := c.Incr(ctx, "w", time.Minute)
	if n != 1 {
		t.Fatalf("expected a new window, got %d", n)
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("abc"), 0)
	got, _ := c.Get(ctx, "k")
	got[0] = 'x'

	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value mutated: %q", again)
	}
}
