// Package filestore persists CLI sessions in a local JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/target/mmk-console/internal/ports"
)

// DefaultFileName is the session file created under the user config dir.
const DefaultFileName = "session.json"

// entry mirrors the two well-known keys plus an optional expiry.
type entry struct {
	AccessToken string     `json:"access_token"`
	CurrentUser string     `json:"currentUser"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SessionFile stores session records in a single JSON document keyed by session key.
// Writes go to a temp file in the same directory and are renamed into place.
type SessionFile struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewSessionFile returns a SessionFile writing to path. The directory is created on first save.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path, now: time.Now}
}

// DefaultPath returns <user config dir>/mmk-console/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "mmk-console", DefaultFileName), nil
}

// Path returns the backing file path.
func (f *SessionFile) Path() string { return f.path }

// Load returns ports.ErrSessionNotFound for missing or expired entries.
func (f *SessionFile) Load(_ context.Context, key string) (ports.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return ports.SessionRecord{}, err
	}
	e, ok := entries[key]
	if !ok || f.expired(e) {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}
	return ports.SessionRecord{AccessToken: e.AccessToken, CurrentUser: e.CurrentUser}, nil
}

// Save writes both fields of key together.
func (f *SessionFile) Save(_ context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	e := entry{AccessToken: rec.AccessToken, CurrentUser: rec.CurrentUser}
	if ttl > 0 {
		exp := f.now().Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	entries[key] = e
	return f.write(entries)
}

// Update rewrites key only while a live entry exists.
func (f *SessionFile) Update(_ context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	cur, ok := entries[key]
	if !ok || f.expired(cur) {
		return ports.ErrSessionNotFound
	}
	e := entry{AccessToken: rec.AccessToken, CurrentUser: rec.CurrentUser}
	if ttl > 0 {
		exp := f.now().Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	entries[key] = e
	return f.write(entries)
}

func (f *SessionFile) expired(e entry) bool {
	return e.ExpiresAt != nil && !f.now().Before(*e.ExpiresAt)
}

// Delete removes key. Missing keys and a missing file are not errors.
func (f *SessionFile) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.write(entries)
}

func (f *SessionFile) read() (map[string]entry, error) {
	entries := map[string]entry{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt file is treated as empty; the next save rewrites it.
		slog.Default().Warn("discarding unreadable session file", "path", f.path, "error", err)
		return map[string]entry{}, nil
	}
	return entries, nil
}

func (f *SessionFile) write(entries map[string]entry) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Watch calls onChange whenever the session file is replaced or removed by any
// process, until ctx is canceled. The parent directory is watched because
// saves replace the file by rename.
func (f *SessionFile) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				onChange()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch session file: %w", werr)
		}
	}
}
