package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"model-deployer/internal/config"
	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

type objectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore creates an S3-compatible store. Static keys win when set;
// otherwise the usual AWS environment, shared file and instance role
// credentials are tried in that order.
func NewObjectStore(cfg *config.StorageConfig) (output.ObjectStore, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &objectStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *objectStore) PutFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("put %s: no bucket configured", key)
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %w", domain.ErrStorage, key, err)
	}
	return domain.ObjectURL{Bucket: s.bucket, Key: key}.String(), nil
}

func (s *objectStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get object %s/%s: %w", domain.ErrStorage, bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces a missing object before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("%w: stat object %s/%s: %w", domain.ErrStorage, bucket, key, err)
	}
	return obj, nil
}

// Ensure interface compliance
var _ output.ObjectStore = (*objectStore)(nil)
