package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"future expiry", time.Now().Add(1 * time.Hour), false},
		{"past expiry", time.Now().Add(-1 * time.Hour), true},
		{"just expired", time.Now().Add(-1 * time.Millisecond), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	t.Run("future expiry", func(t *testing.T) {
		entry := &Entry{Expires: time.Now().Add(10 * time.Minute)}
		ttl := entry.TTL()
		if ttl < 9*time.Minute || ttl > 10*time.Minute {
			t.Errorf("TTL() = %v, want ~10m", ttl)
		}
	})

	t.Run("expired entry", func(t *testing.T) {
		entry := &Entry{Expires: time.Now().Add(-1 * time.Hour)}
		if ttl := entry.TTL(); ttl != 0 {
			t.Errorf("TTL() = %v, want 0 for expired entry", ttl)
		}
	})
}
