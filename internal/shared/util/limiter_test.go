package util

import (
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow(1) {
		t.Fatal("first event should be allowed")
	}
	if !l.Allow(1) {
		t.Fatal("burst capacity should allow a second event")
	}
	if l.Allow(1) {
		t.Fatal("third immediate event should be rejected")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewLimiter(50, 1)

	if !l.Allow(1) {
		t.Fatal("fresh bucket should allow one event")
	}
	if l.Allow(1) {
		t.Fatal("empty bucket should deny")
	}

	time.Sleep(40 * time.Millisecond)
	if !l.Allow(1) {
		t.Fatal("bucket should refill within two token periods")
	}
}
