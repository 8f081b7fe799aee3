package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestPropertyWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PropertiesFile)
	assert.NoError(t, os.WriteFile(path, []byte("motd=first\n"), 0o644))

	changes := make(chan map[string]string, 64)
	w := NewPropertyWatcher(path, nil, func(props map[string]string) { changes <- props })
	assert.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Unrelated files in the directory are ignored.
	assert.NoError(t, os.WriteFile(filepath.Join(dir, EulaFile), []byte("eula=true"), 0o644))
	assert.NoError(t, os.WriteFile(path, []byte("motd=second\n"), 0o644))

	// A truncating write may be observed before the new content lands.
	timeout := time.After(10 * time.Second)
	for {
		select {
		case props := <-changes:
			if props["motd"] == "second" {
				return
			}
		case <-timeout:
			t.Fatal("no reload after write")
		}
	}
}

func TestPropertyWatcherStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	w := NewPropertyWatcher(filepath.Join(dir, PropertiesFile), nil, func(map[string]string) {})
	assert.NoError(t, w.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	w.Stop()
}

func TestPropertyWatcherMissingDirectory(t *testing.T) {
	w := NewPropertyWatcher(filepath.Join(t.TempDir(), "missing", PropertiesFile), nil, func(map[string]string) {})
	err := w.Start(context.Background())
	assert.IsError(t, err, ErrIO)
}
