// Package blobstore stores uploaded byte streams under generated names and
// hands back opaque locators of the form "<collection>/<storedName>".
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/enrollportal/internal/server/config"
	"github.com/google/uuid"
)

// Store is implemented by every blob backend. Implementations are safe for
// concurrent use.
type Store interface {
	// Put writes r from its current offset under a fresh random name inside
	// collection, creating the collection when needed, and returns the locator.
	Put(ctx context.Context, r io.ReadSeeker, collection, ext string) (string, error)
	// Delete removes the blob. A locator that does not exist is not an error.
	Delete(ctx context.Context, locator string) error
	// Open returns the blob content; a missing blob yields common.ErrorNotFound.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

var ErrInvalidLocator = errors.New("invalid locator")

// Collections used by the portal.
const (
	CollectionDocuments = "uploads"
	CollectionProjects  = "uploads/projects"
)

// NewStoredName returns a collision-resistant name made of 32 hex characters
// and the lower-cased extension. It never depends on caller-supplied names.
func NewStoredName(ext string) string {
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// StoredName returns the last element of a locator.
func StoredName(locator string) string {
	return path.Base(locator)
}

// cleanLocator rejects locators that could escape the store root.
func cleanLocator(locator string) (string, error) {
	if locator == "" || strings.Contains(locator, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	c := path.Clean(locator)
	if path.IsAbs(c) || c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return c, nil
}

func cleanCollection(collection string) (string, error) {
	c, err := cleanLocator(collection)
	if err != nil {
		return "", fmt.Errorf("collection: %w", err)
	}
	return c, nil
}

// New builds the Store selected by cfg.BlobBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendLocal, "":
		return NewLocalStore(cfg.UploadRoot)
	case config.BlobBackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
