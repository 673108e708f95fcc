package ratelimit

import (
	"testing"
	"time"
)

func TestAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("expected 4th request to be rejected")
	}
}

func TestPerKeyIndependence(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("a") {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("expected first request for key b to be allowed")
	}
	if l.Allow("a") {
		t.Fatal("expected second request for key a to be rejected")
	}
}

func TestWindowResets(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("expected first request to be allowed")
	}
	time.Sleep(15 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("expected request to be allowed after window reset")
	}
}
