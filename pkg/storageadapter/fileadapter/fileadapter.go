// Package fileadapter implements storageadapter.Adapter as flat files on
// local disk, adapted from the teacher's store/ledger.FileLedger
// (os.ReadFile/os.WriteFile under a mutex, one JSON document per key).
package fileadapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/kontext-systems/audit-core/pkg/storageadapter"
)

// Adapter persists each key as a separate file under dir. Keys are
// sanitized to a safe filename since the Event Store's well-known keys
// contain a colon (kontext:events).
type Adapter struct {
	dir string
	mu  sync.Mutex
}

// New constructs a file adapter rooted at dir, creating it if absent.
func New(dir string) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Adapter{dir: dir}, nil
}

func (a *Adapter) pathFor(key string) string {
	safe := filepath.Clean(filepath.Base(key))
	return filepath.Join(a.dir, safe+".json")
}

func (a *Adapter) Save(ctx context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return os.WriteFile(a.pathFor(key), data, 0o600)
}

func (a *Adapter) Load(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := os.ReadFile(a.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storageadapter.ErrNotFound
	}
	return data, err
}
