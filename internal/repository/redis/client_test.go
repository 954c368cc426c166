package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestStateKeyPrefix(t *testing.T) {
	// The client dials lazily; no server is needed to build keys.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	tests := []struct {
		prefix string
		want   string
	}{
		{"", "warroom:game:g1:state"},
		{"staging", "staging:game:g1:state"},
	}
	for _, tt := range tests {
		if got := NewClientFromPool(rdb, tt.prefix).stateKey("g1"); got != tt.want {
			t.Errorf("prefix %q: expected %s, got %s", tt.prefix, tt.want, got)
		}
	}
}

func TestNewClientBadURL(t *testing.T) {
	if _, err := NewClient("not-a-url://"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
