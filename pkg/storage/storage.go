// Package storage abstracts where submission bytes live. The pipeline only
// needs three operations: persist a payload under a generated key, read it
// back for extraction, and remove it on delete.
package storage

import (
	"context"
	"io"
)

// FileStore abstracts blob persistence for submissions. Save returns the
// storage key recorded on the submission row; Read and Delete accept that
// same key.
type FileStore interface {
	Save(ctx context.Context, key string, reader io.Reader) (string, error)
	Read(ctx context.Context, storageKey string) ([]byte, error)
	Delete(ctx context.Context, storageKey string) error
}
