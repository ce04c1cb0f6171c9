package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Fatal("request over limit should be denied")
	}
	// Other identities have their own bucket
	if !l.Allow("bob") {
		t.Fatal("unrelated identity should be allowed")
	}
}

func TestAllowEmptyIdentity(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()
	// Unauthenticated traffic is limited elsewhere
	for i := 0; i < 5; i++ {
		if !l.Allow("") {
			t.Fatal("empty identity must not be limited")
		}
	}
}

func TestAllowStrictSeparateBucket(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		if !l.AllowStrict("10.0.0.1", 2, time.Minute) {
			t.Fatalf("strict request %d should be allowed", i+1)
		}
	}
	if l.AllowStrict("10.0.0.1", 2, time.Minute) {
		t.Fatal("strict bucket should deny over its own limit")
	}
	if !l.Allow("10.0.0.1") {
		t.Fatal("regular bucket should be unaffected by strict bucket")
	}
}
