package middleware

import (
	"testing"
)

func TestComputeBurstCapacity_AutoComputes(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := computeBurstCapacity(100, 0); got != 200 {
		t.Errorf("computeBurstCapacity(100, 0) = %d, want 200", got)
	}
}

func TestComputeBurstCapacity_UsesOverride(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := computeBurstCapacity(100, 500); got != 500 {
		t.Errorf("computeBurstCapacity(100, 500) = %d, want 500", got)
	}
}

func TestInMemoryRateLimiter_EnforcesGlobalLimit(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1, GlobalBurst: 1, KeyRPS: 100, UnAuthRPS: 100})
	defer rl.Close()

	if !rl.Allow("worker-1") {
		t.Fatal("first request should be allowed")
	}

	if rl.Allow("worker-1") {
		t.Fatal("second immediate request should be blocked by the global limit")
	}
}

func TestInMemoryRateLimiter_PerKeyIsolation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1000, GlobalBurst: 1000, KeyRPS: 1, KeyBurst: 1, UnAuthRPS: 100})
	defer rl.Close()

	if !rl.Allow("worker-a") {
		t.Fatal("worker-a's first request should be allowed")
	}

	if !rl.Allow("worker-b") {
		t.Fatal("worker-b should have its own bucket, unaffected by worker-a")
	}

	if rl.Allow("worker-a") {
		t.Fatal("worker-a's second immediate request should be blocked by its own limit")
	}
}

func TestInMemoryRateLimiter_UnauthenticatedTier(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1000, GlobalBurst: 1000, KeyRPS: 100, UnAuthRPS: 1, UnAuthBurst: 1})
	defer rl.Close()

	if !rl.Allow("") {
		t.Fatal("first unauthenticated request should be allowed")
	}

	if rl.Allow("") {
		t.Fatal("second immediate unauthenticated request should be blocked")
	}
}
