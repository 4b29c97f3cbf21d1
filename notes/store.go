package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EasterCompany/dex-voice-bridge/worker"
)

// Store persists the full note list of a guild.
type Store interface {
	SaveNotes(guildID string, notes []Note) error
}

// Loader reads back a guild's notes.
type Loader interface {
	LoadNotes(guildID string) ([]Note, error)
}

// FileStore writes one JSON file per guild: notes_<guildID>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fs *FileStore) Path(guildID string) string {
	return filepath.Join(fs.dir, fmt.Sprintf("notes_%s.json", guildID))
}

func (fs *FileStore) SaveNotes(guildID string, notes []Note) error {
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal notes: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.dir != "" {
		if err := os.MkdirAll(fs.dir, 0755); err != nil {
			return fmt.Errorf("could not create notes directory: %w", err)
		}
	}
	path := fs.Path(guildID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("could not write notes for guild %s: %w", guildID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("could not replace notes for guild %s: %w", guildID, err)
	}
	return nil
}

// LoadNotes returns nil without error when the guild has no file yet.
func (fs *FileStore) LoadNotes(guildID string) ([]Note, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.Path(guildID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read notes for guild %s: %w", guildID, err)
	}
	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("could not parse notes for guild %s: %w", guildID, err)
	}
	return notes, nil
}

// Stores saves to every store and joins their errors.
type Stores []Store

func (ss Stores) SaveNotes(guildID string, notes []Note) error {
	var errs []error
	for _, s := range ss {
		if s == nil {
			continue
		}
		if err := s.SaveNotes(guildID, notes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncStore hands saves to a worker pool so callers never wait on I/O.
// Use a single-worker pool so that the last snapshot written is the newest.
type AsyncStore struct {
	pool    *worker.Pool
	store   Store
	onError func(error)
}

func NewAsyncStore(pool *worker.Pool, store Store, onError func(error)) *AsyncStore {
	return &AsyncStore{pool: pool, store: store, onError: onError}
}

func (as *AsyncStore) SaveNotes(guildID string, notes []Note) error {
	snapshot := append([]Note(nil), notes...)
	ok := as.pool.Submit(func() {
		if err := as.store.SaveNotes(guildID, snapshot); err != nil && as.onError != nil {
			as.onError(err)
		}
	})
	if !ok {
		return fmt.Errorf("note persistence stopped, notes for guild %s not saved", guildID)
	}
	return nil
}
