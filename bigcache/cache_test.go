package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func newTestCooldown(t *testing.T, window time.Duration) (*Cooldown, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := NewCache(ctx, time.Minute)
	if err != nil {
		t.Fatalf("NewCache() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cd := NewCooldown(c, window)
	cd.now = func() time.Time { return now }
	return cd, &now
}

func TestCacheSetGetDelete(t *testing.T) {
	c, err := NewCache(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("NewCache() unexpected error: %v", err)
	}
	defer c.Close()

	if err := c.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}
	got, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get() = %q, want %q", got, "v")
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := c.Get("k"); err == nil {
		t.Error("Get() after Delete expected error")
	}
}

func TestCooldownAllow(t *testing.T) {
	tests := []struct {
		name          string
		window        time.Duration
		advance       time.Duration
		secondKey     string
		wantAllowed   bool
		wantRemaining time.Duration
	}{
		{
			name:          "blocked within window",
			window:        30 * time.Second,
			advance:       10 * time.Second,
			secondKey:     "user-1",
			wantAllowed:   false,
			wantRemaining: 20 * time.Second,
		},
		{
			name:        "allowed after window",
			window:      30 * time.Second,
			advance:     31 * time.Second,
			secondKey:   "user-1",
			wantAllowed: true,
		},
		{
			name:        "keys are independent",
			window:      30 * time.Second,
			advance:     time.Second,
			secondKey:   "user-2",
			wantAllowed: true,
		},
		{
			name:        "zero window always allows",
			window:      0,
			secondKey:   "user-1",
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd, now := newTestCooldown(t, tt.window)

			if ok, _ := cd.Allow("user-1"); !ok {
				t.Fatal("first Allow() = false, want true")
			}
			*now = now.Add(tt.advance)

			ok, remaining := cd.Allow(tt.secondKey)
			if ok != tt.wantAllowed {
				t.Errorf("Allow() = %v, want %v", ok, tt.wantAllowed)
			}
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %v, want %v", remaining, tt.wantRemaining)
			}
		})
	}
}

func TestCooldownReset(t *testing.T) {
	cd, _ := newTestCooldown(t, time.Hour)

	if ok, _ := cd.Allow("user-1"); !ok {
		t.Fatal("first Allow() = false, want true")
	}
	cd.Reset("user-1")

	if ok, _ := cd.Allow("user-1"); !ok {
		t.Error("Allow() after Reset = false, want true")
	}
}

func TestNilCooldownAllows(t *testing.T) {
	var cd *Cooldown
	for range 3 {
		if ok, _ := cd.Allow("user-1"); !ok {
			t.Error("nil Cooldown blocked a request")
		}
	}
	cd.Reset("user-1")
}
