// Package memory provides an in-process BlobStore backed by a map,
// intended for tests and single-node deployments.
package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/agentvfs/core/pkg/blobstore"
	"github.com/agentvfs/core/pkg/errors"
)

// Store is an in-memory BlobStore. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) Read(ctx context.Context, key string, rng *blobstore.Range) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, errors.NewNotFound("blob", key)
	}
	if rng == nil {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	end := int64(len(data))
	if rng.Length > 0 && rng.Offset+rng.Length < end {
		end = rng.Offset + rng.Length
	}
	if rng.Offset > int64(len(data)) {
		rng.Offset = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[rng.Offset:end])), nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return int64(len(data)), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
