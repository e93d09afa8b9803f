package store

import (
	"fmt"
	"os"

	"github.com/doorman-proxy/doorman/pkg/logger"
	"github.com/doorman-proxy/doorman/pkg/watcher"
)

// NewFromFile loads a snapshot store from a YAML file and hot-reloads it
// whenever the file changes on disk. A reload that fails to parse keeps
// serving the previous dataset.
func NewFromFile(path string) (*InMemory, error) {
	snapshot, err := loadSnapshotFile(path)
	if err != nil {
		return nil, err
	}

	s, err := NewInMemory(snapshot)
	if err != nil {
		return nil, err
	}

	if err := watcher.WatchFileForUpdates(path, nil, func() {
		snapshot, err := loadSnapshotFile(path)
		if err != nil {
			logger.Errorf("%v: keeping the current store dataset", err)
			return
		}
		if err := s.Swap(snapshot); err != nil {
			logger.Errorf("error applying store snapshot from '%s': %v", path, err)
			return
		}
		logger.Printf("store dataset reloaded from '%s'", path)
	}); err != nil {
		return nil, fmt.Errorf("could not watch store file: %w", err)
	}

	return s, nil
}

func loadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("could not read store file '%s': %w", path, err)
	}
	return ParseSnapshot(data)
}
