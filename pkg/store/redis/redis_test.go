package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/store/storetest"
	"github.com/stretchr/testify/require"
)

// Runs against a live server: REDIS_URL=redis://localhost:6379/0 go test ./pkg/store/redis
func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, Config{URL: url, Prefix: "beatmarket-test:" + uuid.NewString()})
		require.NoError(t, err)
		t.Cleanup(func() {
			keys, err := s.rdb.Keys(ctx, s.prefix+":*").Result()
			if err == nil && len(keys) > 0 {
				s.rdb.Del(ctx, keys...)
			}
			_ = s.Close()
		})
		return s
	})
}

func TestKeysAreNamespaced(t *testing.T) {
	s := New(nil, "")
	require.Equal(t, "beatmarket:beat:b1", s.beatKey("b1"))
	require.Equal(t, "beatmarket:listed", s.listedKey())

	s = New(nil, "staging")
	require.Equal(t, "staging:beat:b1", s.beatKey("b1"))
}
