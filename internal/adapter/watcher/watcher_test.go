package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmfs "phrasematch/internal/adapter/fs"
	"phrasematch/internal/logging"
)

func startWatcher(t *testing.T, dir string) <-chan []string {
	t.Helper()
	walker := pmfs.NewWalker([]string{"**/*.csv"}, []string{"**/tmp/**"})
	w, err := New(dir, walker, 50*time.Millisecond, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(paths []string) { changes <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	return changes
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "icd.csv")
	require.NoError(t, os.WriteFile(file, []byte("a,fever\n"), 0644))

	changes := startWatcher(t, dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("a,fever\nb,chills\n"), 0644))
	}

	select {
	case paths := <-changes:
		assert.Equal(t, []string{file}, paths)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change callback")
	}

	select {
	case extra := <-changes:
		t.Fatalf("burst should produce one callback, got another: %v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresUnmatchedFiles(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))

	select {
	case paths := <-changes:
		t.Fatalf("unexpected callback for %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	sub := filepath.Join(dir, "chapter2")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "terms.csv")
	require.NoError(t, os.WriteFile(file, []byte("a,cough\n"), 0644))

	select {
	case paths := <-changes:
		assert.Contains(t, paths, file)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change callback for a file in a new directory")
	}
}
