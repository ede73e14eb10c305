package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
	"github.com/Homlet/middleware-android-sub001/internal/rdc/store/storetest"
)

func redisAddr() string {
	if addr := os.Getenv("MW_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := NewFactory(context.Background(), store.NewSettings("redis", Defaults(), map[string]string{
			KeyAddr:        redisAddr(),
			KeyKeyPrefix:   "mw-rdc-test:" + uuid.NewString() + ":",
			KeyDialTimeout: "1s",
		}))
		if err != nil {
			t.Skipf("redis unavailable: %v", err)
		}
		t.Cleanup(func() {
			rs := s.(*Store)
			if !rs.closed.Load() {
				rs.client.Del(context.Background(), rs.key)
			}
			s.Close()
		})
		return s
	})
}

func TestEmptyAddr(t *testing.T) {
	if _, err := NewFactory(context.Background(), store.NewSettings("redis", nil, map[string]string{KeyAddr: ""})); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
