package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/config"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("retrieval.limit", 5))
	require.NoError(t, store.Set("ingest.lane_threshold", 0.7))
	require.NoError(t, store.Set("store.backend", "sqlite"))
	require.NoError(t, store.Set("ingest.include_review", true))
	require.NoError(t, store.Set("answer.policy_patterns", []any{"a", 1, "b"}))

	assert.Equal(t, 5, store.GetInt("retrieval.limit"))
	assert.Equal(t, 5.0, store.GetFloat("retrieval.limit"))
	assert.Equal(t, 0.7, store.GetFloat("ingest.lane_threshold"))
	assert.Equal(t, "sqlite", store.GetString("store.backend"))
	assert.True(t, store.GetBool("ingest.include_review"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("answer.policy_patterns"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, store.GetFloat("store.backend"))
}

func TestNewConfigStore_Seed(t *testing.T) {
	store := NewConfigStore(config.Values{"store.backend": "memory"}, config.Values{"retrieval.limit": 3})

	assert.Equal(t, "memory", store.GetString("store.backend"))
	assert.Equal(t, 3, store.GetInt("retrieval.limit"))
}

func TestConfigStore_NoOps(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("k", n)
			_ = store.GetInt("k")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("k")
	assert.True(t, ok)
}
