//go:build integration

package statemirror

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

func TestRedisStore_Roundtrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	ctx := context.Background()
	store, err := Connect(ctx, config.RedisConfig{Enabled: true, Addr: addr})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer store.Close()

	m := New(store, Options{Prefix: "accessorhost:test", TTL: time.Minute})
	m.Start(ctx)
	m.Deliver("robot", port.Event{Port: "X", Value: 1.5, Time: time.Now()})
	m.Stop()
	defer m.Forget(ctx, "robot") //nolint:errcheck // test cleanup

	v, err := m.Get(ctx, "robot", "X")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Value != 1.5 {
		t.Errorf("value = %v, want 1.5", v.Value)
	}
}
