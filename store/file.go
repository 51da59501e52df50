package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/near/borsh-go"
)

// snapshot is the Borsh-encoded on-disk representation: the full
// key->bytes map as a sorted entry list.
type snapshot struct {
	Entries []snapshotEntry
}

type snapshotEntry struct {
	Key   string
	Value []byte
}

// FileStore persists entries as a single Borsh snapshot file. Every
// Put rewrites the snapshot to a temp file and renames it into place,
// so a power cut mid-write leaves the previous snapshot intact.
type FileStore struct {
	path    string
	entries map[string][]byte
}

// OpenFile opens or creates the snapshot file at path.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		entries: make(map[string][]byte),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %v", ErrIO, path, err)
	}

	var snap snapshot
	if err := borsh.Deserialize(&snap, raw); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot %s: %v", ErrIO, path, err)
	}
	for _, e := range snap.Entries {
		s.entries[e.Key] = e.Value
	}

	return s, nil
}

// Get returns the stored value for key and whether it exists.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Put writes value under key and flushes the snapshot atomically.
func (s *FileStore) Put(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	prev, had := s.entries[key]
	s.entries[key] = v

	if err := s.flush(); err != nil {
		// Roll back the in-memory map so it mirrors the durable state.
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) flush() error {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snap := snapshot{}
	for _, key := range keys {
		snap.Entries = append(snap.Entries, snapshotEntry{Key: key, Value: s.entries[key]})
	}

	raw, err := borsh.Serialize(snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ErrIO, err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create snapshot: %v", ErrIO, err)
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write snapshot: %v", ErrIO, err)
	}
	// The data must hit stable storage before the rename makes it the
	// live snapshot; otherwise a power cut can leave the final name
	// pointing at unwritten blocks.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync snapshot: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close snapshot: %v", ErrIO, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replace snapshot: %v", ErrIO, err)
	}

	if dir, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}
