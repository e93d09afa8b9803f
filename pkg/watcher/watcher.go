package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doorman-proxy/doorman/pkg/logger"
)

// WatchFileForUpdates performs an action every time a file on disk is
// updated. Close done to stop watching.
func WatchFileForUpdates(filename string, done <-chan bool, action func()) error {
	filename = filepath.Clean(filename)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher for '%s': %w", filename, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-done:
				logger.Printf("shutting down watcher for: %s", filename)
				return
			case event, ok := <-watcher.Events:
				if !ok { // 'Events' channel is closed
					logger.Errorf("error: cannot start the watcher, events channel is closed")
					return
				}
				filterEvent(watcher, event, filename, action)
			case err := <-watcher.Errors:
				logger.Errorf("error watching '%s': %s", filename, err)
			}
		}
	}()
	if err := watcher.Add(filename); err != nil {
		return fmt.Errorf("failed to add '%s' to watcher: %w", filename, err)
	}
	logger.Printf("watching '%s' for updates", filename)
	return nil
}

// filterEvent runs the action when the watched file is written or
// created, and re-arms the watch when the file is replaced underneath us
// (Kubernetes ConfigMap/Secret style symlink swaps).
func filterEvent(watcher *fsnotify.Watcher, event fsnotify.Event, filename string, action func()) {
	if filepath.Clean(event.Name) != filename {
		return
	}
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		logger.Printf("watching interrupted on event: %s", event)
		waitForReplacement(filename, event.Op, watcher)
		action()
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		logger.Printf("reloading after event: %s", event)
		action()
	}
}

// waitForReplacement waits for the file to exist again and re-adds it to
// the watch.
func waitForReplacement(filename string, op fsnotify.Op, watcher *fsnotify.Watcher) {
	const sleepInterval = 50 * time.Millisecond

	// Avoid a race when fsnotify.Remove is preceded by fsnotify.Chmod.
	if op&fsnotify.Chmod != 0 {
		time.Sleep(sleepInterval)
	}
	for {
		if _, err := os.Stat(filename); err == nil {
			if err := watcher.Add(filename); err == nil {
				logger.Printf("watching resumed for '%s'", filename)
				return
			}
		}
		time.Sleep(sleepInterval)
	}
}
