package storage

import "context"

// UploadResult describes a stored file: the public URL handed to clients
// and the storage key needed to delete the object later.
type UploadResult struct {
	URL       string
	StorageID string
}

// FileStore defines the interface for external object storage.
type FileStore interface {
	Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error)
	Delete(ctx context.Context, storageID string) error
}
