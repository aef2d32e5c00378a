package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/filex"
)

// LocalStore keeps blobs as files below a root directory. The locator is the
// slash-separated path relative to that root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob store: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local blob store: %w", err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return nil, fmt.Errorf("local blob store: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Put(ctx context.Context, r io.ReadSeeker, collection, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	collection, err := cleanCollection(collection)
	if err != nil {
		return "", err
	}

	dir, err := filex.EnsureDir(s.root, filepath.FromSlash(collection))
	if err != nil {
		return "", err
	}

	name := NewStoredName(ext)
	if _, err := filex.WriteNew(filepath.Join(dir, name), r); err != nil {
		return "", err
	}

	return collection + "/" + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	return filex.RemoveIfExists(p)
}

func (s *LocalStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) path(locator string) (string, error) {
	c, err := cleanLocator(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(c)), nil
}
