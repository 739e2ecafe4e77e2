package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/ports"
)

func newTestFile(t *testing.T) *SessionFile {
	t.Helper()
	return NewSessionFile(filepath.Join(t.TempDir(), "nested", DefaultFileName))
}

func TestSessionFile_SaveLoadDelete(t *testing.T) {
	f := newTestFile(t)
	ctx := context.Background()

	_, err := f.Load(ctx, "cli")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)

	rec := ports.SessionRecord{AccessToken: "tok", CurrentUser: `{"id":1,"roles":["user"]}`}
	require.NoError(t, f.Save(ctx, "cli", rec, 0))

	got, err := f.Load(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, f.Delete(ctx, "cli"))
	_, err = f.Load(ctx, "cli")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)
	require.NoError(t, f.Delete(ctx, "cli"))
}

func TestSessionFile_KeysAreIndependent(t *testing.T) {
	f := newTestFile(t)
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, "a", ports.SessionRecord{AccessToken: "1"}, 0))
	require.NoError(t, f.Save(ctx, "b", ports.SessionRecord{AccessToken: "2"}, 0))
	require.NoError(t, f.Delete(ctx, "a"))

	got, err := f.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got.AccessToken)
}

func TestSessionFile_Expiry(t *testing.T) {
	f := newTestFile(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, "cli", ports.SessionRecord{AccessToken: "t"}, time.Minute))
	_, err := f.Load(ctx, "cli")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = f.Load(ctx, "cli")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestSessionFile_UpdateRequiresLiveEntry(t *testing.T) {
	f := newTestFile(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()
	rec := ports.SessionRecord{AccessToken: "t", CurrentUser: `{"id":1,"roles":["user"],"activeRole":"user"}`}

	require.ErrorIs(t, f.Update(ctx, "cli", rec, 0), ports.ErrSessionNotFound)
	_, err := os.Stat(f.Path())
	require.ErrorIs(t, err, os.ErrNotExist, "update must not create the file")

	require.NoError(t, f.Save(ctx, "cli", ports.SessionRecord{AccessToken: "t"}, time.Minute))
	require.NoError(t, f.Update(ctx, "cli", rec, time.Hour))
	got, err := f.Load(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	now = now.Add(2 * time.Hour)
	require.ErrorIs(t, f.Update(ctx, "cli", rec, time.Hour), ports.ErrSessionNotFound)
}

func TestSessionFile_CorruptFileReadsAsEmpty(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path()), 0o700))
	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0o600))

	_, err := f.Load(context.Background(), "cli")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)

	require.NoError(t, f.Save(context.Background(), "cli", ports.SessionRecord{AccessToken: "t"}, 0))
	got, err := f.Load(context.Background(), "cli")
	require.NoError(t, err)
	assert.Equal(t, "t", got.AccessToken)
}

func TestSessionFile_WatchSeesSaves(t *testing.T) {
	f := newTestFile(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- f.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	require.Eventually(t, func() bool {
		_ = f.Save(context.Background(), "cli", ports.SessionRecord{AccessToken: "t"}, 0)
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
