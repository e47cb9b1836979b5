package storage

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const fileExt = ".json"

// FileBackend persists entries as one file per key on an afero
// filesystem. Keys are URL-escaped to form safe file names.
type FileBackend struct {
	fsys afero.Fs
	dir  string
}

// NewFileBackend creates a file backend rooted at dir, creating the
// directory if needed. A nil fs defaults to the OS filesystem; tests
// typically pass afero.NewMemMapFs().
func NewFileBackend(fsys afero.Fs, dir string) (*FileBackend, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}

	return &FileBackend{fsys: fsys, dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+fileExt)
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(b.fsys, b.path(key))
	if err != nil {
		if isNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return data, true, nil
}

func (b *FileBackend) Set(key string, value []byte) error {
	if err := afero.WriteFile(b.fsys, b.path(key), value, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	if err := b.fsys.Remove(b.path(key)); err != nil && !isNotExist(err) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Keys() ([]string, error) {
	entries, err := afero.ReadDir(b.fsys, b.dir)
	if err != nil {
		return nil, fmt.Errorf("list storage dir %s: %w", b.dir, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}

		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func isNotExist(err error) bool {
	// afero wraps os errors, so fs.ErrNotExist matching covers both the
	// OS and memmap filesystems.
	return errors.Is(err, iofs.ErrNotExist)
}
