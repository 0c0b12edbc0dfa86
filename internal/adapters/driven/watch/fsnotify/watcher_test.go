package fsnotify

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"create", "/data/enriched/a.enriched.json", fsnotify.Create, true},
		{"write", "/data/enriched/a.enriched.json", fsnotify.Write, true},
		{"remove", "/data/enriched/a.enriched.json", fsnotify.Remove, true},
		{"rename", "/data/enriched/a.enriched.json", fsnotify.Rename, true},
		{"chmod only", "/data/enriched/a.enriched.json", fsnotify.Chmod, false},
		{"write and chmod", "/data/enriched/a.enriched.json", fsnotify.Write | fsnotify.Chmod, true},
		{"hidden temp file", "/data/enriched/.a.enriched.json-123", fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(fsnotify.Event{Name: tt.path, Op: tt.op}))
		})
	}
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("debounces a burst into one call", func(t *testing.T) {
		root := t.TempDir()
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- New(100*time.Millisecond).Watch(ctx, root, func() { calls.Add(1) }) }()

		time.Sleep(100 * time.Millisecond)
		for i := range 3 {
			name := filepath.Join(root, "v"+string(rune('a'+i))+".enriched.json")
			require.NoError(t, os.WriteFile(name, []byte("{}"), 0644))
		}

		assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
		time.Sleep(250 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("watches new subdirectories", func(t *testing.T) {
		root := t.TempDir()
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() { _ = New(50*time.Millisecond).Watch(ctx, root, func() { calls.Add(1) }) }()

		time.Sleep(100 * time.Millisecond)
		sub := filepath.Join(root, "coachA", "Daytime [abc123def]")
		require.NoError(t, os.MkdirAll(sub, 0755))
		assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

		before := calls.Load()
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, os.WriteFile(filepath.Join(sub, "v.enriched.json"), []byte("{}"), 0644))
		assert.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("missing root", func(t *testing.T) {
		err := New(0).Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func() {})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})
}
