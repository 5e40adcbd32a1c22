package geobase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	fsLockStripes  = 32
	fsTempPattern  = ".geobase-*"
	fsProbeFile    = ".geobase-ping"
	fsHiddenPrefix = "."
)

// FilesystemBackend keeps one file per document under a root directory.
// It backs local mode; the ETag is the MD5 of the file content.
type FilesystemBackend struct {
	root  string
	locks *StripedLocks
}

// NewFilesystemBackend creates a backend rooted at root. Nothing is touched until Ping or a write.
func NewFilesystemBackend(root string) *FilesystemBackend {
	return &FilesystemBackend{
		root:  root,
		locks: NewStripedLocks(fsLockStripes),
	}
}

// path maps a slash key under the root, refusing keys that would escape it
func (b *FilesystemBackend) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", WithContext(ErrValidation, map[string]interface{}{
			"key":    key,
			"reason": "key escapes the data directory",
		})
	}
	return filepath.Join(b.root, clean), nil
}

// fsError translates os errors into the store's sentinels
func fsError(key string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return WithContext(ErrNotFound, map[string]interface{}{"key": key})
	case errors.Is(err, fs.ErrPermission):
		return WithContext(ErrUnauthorized, map[string]interface{}{"key": key})
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, key, err)
}

func (b *FilesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	defer b.locks.RLock(key)()
	return b.load(key)
}

func (b *FilesystemBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	defer b.locks.RLock(key)()
	data, err := b.load(key)
	if err != nil {
		return nil, "", err
	}
	return data, contentETag(data), nil
}

func (b *FilesystemBackend) Put(ctx context.Context, key string, data []byte) error {
	defer b.locks.Lock(key)()
	return b.store(key, data)
}

// PutIfMatch compares and writes under the key's stripe lock. An empty expectedETag writes unconditionally.
func (b *FilesystemBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	defer b.locks.Lock(key)()

	if expectedETag != "" {
		current, err := b.load(key)
		if err != nil {
			return "", err
		}
		if actual := contentETag(current); actual != expectedETag {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"key":      key,
				"expected": expectedETag,
				"actual":   actual,
			})
		}
	}

	if err := b.store(key, data); err != nil {
		return "", err
	}
	return contentETag(data), nil
}

func (b *FilesystemBackend) Delete(ctx context.Context, key string) error {
	defer b.locks.Lock(key)()

	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fsError(key, err)
	}
	return nil
}

func (b *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	p, err := b.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fsError(key, err)
	}
	return true, nil
}

// List walks the directory for prefix. A collection never written to lists as empty.
func (b *FilesystemBackend) List(ctx context.Context, prefix string) ([]string, error) {
	dir, err := b.path(prefix)
	if err != nil {
		return nil, err
	}

	keys := []string{}
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), fsHiddenPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, fsError(prefix, walkErr)
	}

	sort.Strings(keys)
	return keys, nil
}

// Ping makes sure the root exists and accepts writes
func (b *FilesystemBackend) Ping(ctx context.Context) error {
	if err := os.MkdirAll(b.root, DefaultDirPermissions); err != nil {
		return fmt.Errorf("cannot create data directory %s: %w", b.root, err)
	}
	probe := filepath.Join(b.root, fsProbeFile)
	if err := os.WriteFile(probe, []byte("ok"), DefaultFilePermissions); err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", b.root, err)
	}
	return os.Remove(probe)
}

func (b *FilesystemBackend) Close() error {
	return nil
}

func (b *FilesystemBackend) load(key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fsError(key, err)
	}
	return data, nil
}

// store writes through a temp file and a rename, so readers never observe a partial document
func (b *FilesystemBackend) store(key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fsError(key, err)
	}

	tmp, err := os.CreateTemp(dir, fsTempPattern)
	if err != nil {
		return fsError(key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fsError(key, err)
	}
	if err := tmp.Chmod(DefaultFilePermissions); err != nil {
		tmp.Close()
		return fsError(key, err)
	}
	if err := tmp.Close(); err != nil {
		return fsError(key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fsError(key, err)
	}
	return nil
}

func contentETag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
