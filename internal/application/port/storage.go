package port

import "context"

// FileStorage keeps generated exports. Paths are relative to the storage
// root; implementations refuse paths that leave it.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	GetFullPath(relativePath string) string
}
