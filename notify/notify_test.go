package notify

import (
	"context"
	"testing"

	"spiritual-shorts-pipeline/config"
)

func TestNewWithoutURLIsNop(t *testing.T) {
	n, err := New(config.NotifyConfig{Channel: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("got %T, want Nop", n)
	}
	if err := n.Notify(context.Background(), map[string]string{"a": "b"}); err != nil {
		t.Error(err)
	}
}

func TestNewRedisParsesAddress(t *testing.T) {
	tests := []struct {
		url  string
		addr string
	}{
		{"redis://localhost:6380/0", "localhost:6380"},
		{"localhost:6379", "localhost:6379"},
	}
	for _, tt := range tests {
		r, err := NewRedis(tt.url, "cycles")
		if err != nil {
			t.Fatalf("%s: %v", tt.url, err)
		}
		if got := r.rdb.Options().Addr; got != tt.addr {
			t.Errorf("%s: addr = %q, want %q", tt.url, got, tt.addr)
		}
		if r.channel != "cycles" {
			t.Errorf("channel = %q", r.channel)
		}
		r.Close()
	}
}

func TestRedisNotifyRejectsUnmarshalable(t *testing.T) {
	r, _ := NewRedis("localhost:1", "cycles")
	defer r.Close()
	if err := r.Notify(context.Background(), make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
