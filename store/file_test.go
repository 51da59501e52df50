package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")

	s, err := OpenFile(path)
	require.NoError(t, err)

	_, ok, err := s.Get("solana_key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put("solana_key", []byte{1, 2, 3}))

	v, ok, err := s.Get("solana_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, v)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("otp_secret", []byte("twenty-byte-secret!!")))
	require.NoError(t, s.Put("otp_enrolled", []byte{1}))

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	v, ok, err := reopened.Get("otp_secret")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("twenty-byte-secret!!"), v)

	v, ok, err = reopened.Get("otp_enrolled")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("otp_last", []byte{1, 0, 0, 0, 0, 0, 0, 0}))
	require.NoError(t, s.Put("otp_last", []byte{2, 0, 0, 0, 0, 0, 0, 0}))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get("otp_last")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0}, v)
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.store")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "device.store", entries[0].Name())
}

func TestFileStoreTruncatesStaleTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")
	require.NoError(t, os.WriteFile(path+".tmp", make([]byte, 4096), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("solana_key", []byte{1, 2, 3}))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get("solana_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, v)
}

func TestFileStorePutRollsBackOnFlushFailure(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "missing", "device.store"))
	require.NoError(t, err)

	require.ErrorIs(t, s.Put("k", []byte{1}), ErrIO)

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe}, 0o600))

	_, err := OpenFile(path)
	require.ErrorIs(t, err, ErrIO)
}

func TestFileStoreGetReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.store")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte{1, 2, 3}))

	v, _, err := s.Get("k")
	require.NoError(t, err)
	v[0] = 99

	again, _, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, again)
}

func TestMemoryStoreSnapshotIsDetached(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Put("k", []byte{1}))

	snap := s.Snapshot()
	snap["k"][0] = 42

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)
}
