// Package fs implements BlobStore on a local filesystem directory. Writes
// stage to a temp file and rename(2) into place so a write is atomic at the
// object level even if the process crashes mid-write.
package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/agentvfs/core/pkg/blobstore"
	"github.com/agentvfs/core/pkg/errors"
)

// Config configures the filesystem-backed blob store.
type Config struct {
	BasePath  string
	CreateDir bool
	DirMode   os.FileMode
	FileMode  os.FileMode
}

// Store is a BlobStore rooted at a directory on the local filesystem.
type Store struct {
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// New creates a Store rooted at cfg.BasePath, creating the directory if
// cfg.CreateDir is set.
func New(cfg Config) (*Store, error) {
	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}
	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidArgument("blob store base path is not a directory: " + cfg.BasePath)
	}
	return &Store{basePath: cfg.BasePath, dirMode: cfg.DirMode, fileMode: cfg.FileMode}, nil
}

// keyPath maps an opaque key to a path under basePath. Keys are expected to
// be slash-separated (content hashes, staging/{uuid}); the path is joined
// directly, relying on callers never to pass ".." segments.
func (s *Store) keyPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

func (s *Store) Read(ctx context.Context, key string, rng *blobstore.Range) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.keyPath(key))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("blob", key)
	}
	if err != nil {
		return nil, errors.NewUnavailable(key, err)
	}
	if rng == nil {
		return f, nil
	}
	if _, err := f.Seek(rng.Offset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, errors.NewUnavailable(key, err)
	}
	if rng.Length <= 0 {
		return f, nil
	}
	return &limitedReadCloser{r: io.LimitReader(f, rng.Length), c: f}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }

func (s *Store) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dst := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), s.dirMode); err != nil {
		return 0, errors.NewUnavailable(key, err)
	}

	staging := dst + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.fileMode)
	if err != nil {
		return 0, errors.NewUnavailable(key, err)
	}
	size, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(staging)
		return 0, errors.NewUnavailable(key, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(staging)
		return 0, errors.NewUnavailable(key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(staging)
		return 0, errors.NewUnavailable(key, err)
	}
	if err := os.Rename(staging, dst); err != nil {
		_ = os.Remove(staging)
		return 0, errors.NewUnavailable(key, err)
	}
	return size, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewUnavailable(key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.keyPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewUnavailable(key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := s.keyPath(prefix)
	var out []string

	walkRoot := filepath.Dir(root)
	if _, err := os.Stat(walkRoot); os.IsNotExist(err) {
		return nil, nil
	}

	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		out = append(out, key)
		if limit > 0 && len(out) >= limit {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewUnavailable(prefix, err)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Capabilities() blobstore.Capabilities {
	return blobstore.Capabilities{RangeRead: true, Seekable: true, Append: false}
}
