package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/quill/config"
)

// Media stores uploaded files and hands back their public URL.
type Media interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// New picks the media backend from configuration.
func New(cfg config.AppConfig) (Media, error) {
	switch cfg.MediaBackend {
	case "local", "":
		return NewLocal(cfg.MediaRoot, cfg.MediaURL), nil
	case "minio", "s3":
		return NewMinio(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL, cfg.S3UseSSL)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
	}
}

// ObjectName builds a collision-free key under posts/yyyy/mm/dd keeping the extension.
func ObjectName(ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join("posts", now.Format("2006"), now.Format("01"), now.Format("02"), name)
}

func joinURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(name, "/")
}
