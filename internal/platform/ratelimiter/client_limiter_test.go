package ratelimiter

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowExhaustsBurstPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()
	if !l.Allow("token:a", now) || !l.Allow("token:a", now) {
		t.Fatal("burst must admit the first calls")
	}
	if l.Allow("token:a", now) {
		t.Fatal("exhausted bucket must refuse")
	}
	if !l.Allow("token:b", now) {
		t.Fatal("keys must budget independently")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New(10, 1, time.Minute)
	now := time.Now()
	if !l.Allow("token:a", now) {
		t.Fatal("first call must pass")
	}
	if l.Allow("token:a", now) {
		t.Fatal("bucket must be empty")
	}
	if !l.Allow("token:a", now.Add(200*time.Millisecond)) {
		t.Fatal("bucket must refill")
	}
}

func TestIdleClientsAreSwept(t *testing.T) {
	l := New(1, 1, time.Second)
	now := time.Now()
	l.Allow("token:a", now)
	l.Allow("token:a", now.Add(2*time.Second))
	if len(l.clients) != 1 {
		t.Fatalf("expected a single surviving client, got %d", len(l.clients))
	}
	l.Allow("token:b", now.Add(5*time.Second))
	if _, ok := l.clients["token:a"]; ok {
		t.Fatal("idle client must be evicted")
	}
}

func TestNilLimiterAndBlankKeyAllow(t *testing.T) {
	var l *ClientLimiter
	if !l.Allow("token:a", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
	if !New(1, 1, 0).Allow("  ", time.Now()) {
		t.Fatal("blank key must allow")
	}
	if New(0, 1, 0) != nil || New(1, 0, 0) != nil {
		t.Fatal("invalid args must yield a nil limiter")
	}
}

func TestClientKeyPrefersToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/rpc", nil)
	if got := ClientKey(r, "tok-1"); got != "token:tok-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ClientKey(r, ""); got != "ip:192.0.2.1" {
		t.Fatalf("unexpected key %q", got)
	}
	r.RemoteAddr = ""
	if got := ClientKey(r, ""); got != "ip:unknown" {
		t.Fatalf("unexpected key %q", got)
	}
}
