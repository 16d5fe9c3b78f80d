package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUserPlaylist(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"user_playlist.txt", true},
		{"user_playlist_kids.m3u", true},
		{"/uploads/user_playlist_2.m3u8", true},
		{"user_playlist.m3u", false},
		{"playlist.m3u", false},
		{"user_playlist_notes.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserPlaylist(tt.name))
		})
	}
}

func TestIsPlaylist(t *testing.T) {
	assert.True(t, IsPlaylist("a.TXT"))
	assert.True(t, IsPlaylist("a.m3u8"))
	assert.False(t, IsPlaylist("a.xml"))
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) trigger(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_DebouncesUserPlaylistWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	rec := &recorder{}
	w := New(dir, rec.trigger).WithDebounce(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	// Let the watch registration settle.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "user_playlist.txt")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("#EXTM3U\n"), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.m3u"), []byte("#EXTM3U\n"), 0o600))

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, []string{target}, rec.snapshot())

	files, err := w.Existing()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_StaleTimerDoesNotRetrigger(t *testing.T) {
	rec := &recorder{}
	w := New(t.TempDir(), rec.trigger).WithDebounce(30 * time.Millisecond)
	ctx := context.Background()
	first := filepath.Join(w.dir, "user_playlist.txt")
	second := filepath.Join(w.dir, "user_playlist_kids.m3u")

	w.handle(ctx, fsnotify.Event{Name: first, Op: fsnotify.Write})

	// Hold the lock past the deadline so the first callback is blocked when
	// the second event re-arms the timer.
	w.mu.Lock()
	time.Sleep(100 * time.Millisecond)
	rearmed := make(chan struct{})
	go func() {
		w.handle(ctx, fsnotify.Event{Name: second, Op: fsnotify.Write})
		close(rearmed)
	}()
	w.mu.Unlock()
	<-rearmed

	require.Eventually(t, func() bool {
		paths := rec.snapshot()
		return len(paths) > 0 && paths[len(paths)-1] == second
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	count := 0
	for _, p := range rec.snapshot() {
		if p == second {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestWatcher_StopTimerCancelsPending(t *testing.T) {
	rec := &recorder{}
	w := New(t.TempDir(), rec.trigger).WithDebounce(30 * time.Millisecond)

	w.handle(context.Background(), fsnotify.Event{Name: filepath.Join(w.dir, "user_playlist.txt"), Op: fsnotify.Create})
	w.stopTimer()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}
