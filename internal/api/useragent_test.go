package api

import (
	"testing"
	"time"
)

func TestNormalizeUserAgent(t *testing.T) {
	got := NormalizeUserAgent("  Mozilla/5.0  (Macintosh; Intel Mac OS X 10_15_7)\tAppleWebKit/605.1.15 ")
	expected := "mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num>"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestIsBrowserUserAgent(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		expected bool
	}{
		{"chrome mac", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36", true},
		{"firefox windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0", true},
		{"safari iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 18_6_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.6 Mobile/15E148 Safari/604.1", true},
		{"curl", "curl/8.4.0", false},
		{"crawler", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBrowserUserAgent(tt.ua); got != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.ua, got)
			}
		})
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.getLimiter("192.0.2.1")

	now = now.Add(10 * time.Minute)
	rl.getLimiter("192.0.2.2")
	rl.evictIdle(5 * time.Minute)

	if _, ok := rl.limiters["192.0.2.1"]; ok {
		t.Error("Expected idle client to be evicted")
	}
	if _, ok := rl.limiters["192.0.2.2"]; !ok {
		t.Error("Expected recent client to be kept")
	}
}
