package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectClient is the subset of the MinIO client used for media.
type ObjectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Minio keeps media in an S3 compatible bucket.
type Minio struct {
	client    ObjectClient
	bucket    string
	publicURL string
}

// NewMinio connects to endpoint. publicURL is the prefix objects are served from;
// it defaults to the endpoint's path-style bucket URL.
func NewMinio(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", endpoint, err)
	}
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}
	return NewMinioWithClient(client, bucket, publicURL), nil
}

func NewMinioWithClient(client ObjectClient, bucket, publicURL string) *Minio {
	return &Minio{client: client, bucket: bucket, publicURL: publicURL}
}

func (m *Minio) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", m.bucket, name, err)
	}
	return joinURL(m.publicURL, name), nil
}

func (m *Minio) Delete(ctx context.Context, url string) error {
	prefix := strings.TrimSuffix(m.publicURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := strings.TrimPrefix(url, prefix)
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", m.bucket, name, err)
	}
	return nil
}
