package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FileStore keeps each marker as raw text in <dir>/<handle>_last_tweet.txt,
// the layout earlier deployments already have on disk.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the marker file for handle.
func (s *FileStore) Path(handle string) string {
	return filepath.Join(s.dir, handle+"_last_tweet.txt")
}

func (s *FileStore) Get(ctx context.Context, handle string) (string, bool, error) {
	if err := checkHandle(handle); err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(s.Path(handle))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: read marker: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Put replaces the marker atomically; a crash mid-write leaves the previous
// marker intact.
func (s *FileStore) Put(ctx context.Context, handle, marker string) error {
	if err := checkHandle(handle); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("state: create dir: %w", err)
	}
	if err := renameio.WriteFile(s.Path(handle), []byte(marker), 0o644); err != nil {
		return fmt.Errorf("state: write marker: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, handle string) error {
	if err := checkHandle(handle); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(handle)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("state: delete marker: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// checkHandle keeps handles from escaping the state directory.
func checkHandle(handle string) error {
	if handle == "" || strings.ContainsAny(handle, `/\`) || strings.Contains(handle, "..") {
		return fmt.Errorf("state: unsafe handle %q", handle)
	}
	return nil
}
