// Package objectstore is the blob store holding template bodies. Keys are
// slash separated logical paths such as "onboarding/v3".
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrNotExist is returned for keys that hold no object.
	ErrNotExist = errors.New("object does not exist")
	// ErrExists is returned by PutIfAbsent when the key is taken.
	ErrExists = errors.New("object already exists")
)

// Object describes a stored blob.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store is a blob store with list-by-prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	PutIfAbsent(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Stat(ctx context.Context, key string) (Object, error)
}

// FS implements Store on an afero filesystem. Object keys map to paths
// below the filesystem root.
type FS struct {
	fs afero.Fs
	mu sync.Mutex // serializes conditional writes
}

// NewFS wraps fs.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOSFS returns a store rooted at dir on the local disk.
func NewOSFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object root %s: %w", dir, err)
	}
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemFS returns an in-memory store.
func NewMemFS() *FS {
	return NewFS(afero.NewMemMapFs())
}

// Filesystem exposes the underlying afero filesystem.
func (s *FS) Filesystem() afero.Fs { return s.fs }

func objectPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return "/" + key, nil
}

func notExist(key string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	return err
}

func (s *FS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := objectPath(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return nil, notExist(key, err)
	}
	return data, nil
}

// Put writes data under key, replacing any previous object atomically.
func (s *FS) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := objectPath(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := path.Join(path.Dir(p), "."+path.Base(p)+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, p)
}

// PutIfAbsent writes data only when key is free. The object becomes visible
// complete or not at all.
func (s *FS) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := objectPath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(p); err == nil {
		return fmt.Errorf("%s: %w", key, ErrExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := path.Join(path.Dir(p), "."+path.Base(p)+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := objectPath(key)
	if err != nil {
		return err
	}
	if _, err := s.fs.Stat(p); err != nil {
		return notExist(key, err)
	}
	return s.fs.Remove(p)
}

// List returns the objects whose key starts with prefix, ordered by key.
func (s *FS) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := "/" + prefix
	if !strings.HasSuffix(prefix, "/") {
		root = path.Dir(root)
	}
	root = path.Clean(root)
	if _, err := s.fs.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Object
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		key := strings.TrimPrefix(p, "/")
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *FS) Stat(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	p, err := objectPath(key)
	if err != nil {
		return Object{}, err
	}
	info, err := s.fs.Stat(p)
	if err != nil {
		return Object{}, notExist(key, err)
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("%s: %w", key, ErrNotExist)
	}
	return Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}
