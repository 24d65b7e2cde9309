package archive

import "context"

// Storage is a flat key/value blob store for archived results. Paths are
// slash-separated and relative to the backend's root.
type Storage interface {
	// Write stores data at path, replacing what was there.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the data at path, or core.ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes path, or returns core.ErrNotFound.
	Delete(ctx context.Context, path string) error

	// Exists reports whether path holds data.
	Exists(ctx context.Context, path string) (bool, error)
}

var (
	_ Storage = (*LocalFS)(nil)
	_ Storage = (*S3Storage)(nil)
)
