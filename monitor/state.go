package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store persists the set of filing IDs that have already been announced.
type Store interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Save(ctx context.Context, ids []string) error
}

// KnownSet is the single owner of the in-memory known-ID set. Snapshot and
// MergeAndSave are each atomic, but overlapping cycles that diff against the
// same snapshot can still both announce one filing before either merges.
type KnownSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	store Store
}

// LoadKnownSet reads the persisted set and falls back to an empty one on a
// missing or unreadable state, so a bad file never takes the monitor down.
func LoadKnownSet(ctx context.Context, store Store) *KnownSet {
	ids, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("state load failed, starting empty", "err", err)
		}
		ids = nil
	}
	if ids == nil {
		ids = make(map[string]struct{})
	}
	return &KnownSet{ids: ids, store: store}
}

func (k *KnownSet) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.ids)
}

func (k *KnownSet) Snapshot() map[string]struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]struct{}, len(k.ids))
	for id := range k.ids {
		out[id] = struct{}{}
	}
	return out
}

// MergeAndSave adds ids to the set and persists the union. The in-memory
// merge holds even when the save fails.
func (k *KnownSet) MergeAndSave(ctx context.Context, ids []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, id := range ids {
		k.ids[id] = struct{}{}
	}
	all := make([]string, 0, len(k.ids))
	for id := range k.ids {
		all = append(all, id)
	}
	sort.Strings(all)
	if err := k.store.Save(ctx, all); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// FileStore keeps the known-ID set as a sorted JSON array on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (map[string]struct{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *FileStore) Save(_ context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".known-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
