package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

type recordingRebuilder struct {
	mu    sync.Mutex
	calls [][]records.Type
}

func (r *recordingRebuilder) Rebuild(_ context.Context, types ...records.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, types)
	return nil
}

func (r *recordingRebuilder) snapshot() [][]records.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]records.Type(nil), r.calls...)
}

func TestWatcherDebouncesIntoOneRebuild(t *testing.T) {
	dir := t.TempDir()
	rb := &recordingRebuilder{}
	w, err := New(dir, rb, 100*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte("[]"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "team.json"), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rb.snapshot()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)

	calls := rb.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []records.Type{records.TypeTask, records.TypeTeam}, calls[0])

	cancel()
	assert.NoError(t, <-done)
}

func TestNewFailsForMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), &recordingRebuilder{}, 0)
	assert.Error(t, err)
}
