package ports

import (
	"context"
	"io"
)

// ObjectStore defines the contract for artifact and dataset storage
type ObjectStore interface {
	// PutFile uploads a local file under key in the configured bucket and
	// returns its s3:// URL
	PutFile(ctx context.Context, key, filePath, contentType string) (string, error)

	// Get opens an object for reading
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
