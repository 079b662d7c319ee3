package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes media below a directory served at urlPrefix.
type Local struct {
	root      string
	urlPrefix string
}

func NewLocal(root, urlPrefix string) *Local {
	return &Local{root: root, urlPrefix: urlPrefix}
}

// Root is the directory files are written to.
func (l *Local) Root() string { return l.root }

func (l *Local) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	dst := filepath.Join(l.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	return joinURL(l.urlPrefix, name), nil
}

// Delete removes the file behind a URL produced by Save. Unknown URLs are ignored.
func (l *Local) Delete(_ context.Context, url string) error {
	prefix := strings.TrimSuffix(l.urlPrefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	rel := filepath.FromSlash(strings.TrimPrefix(url, prefix))
	if strings.Contains(rel, "..") {
		return fmt.Errorf("refusing to delete %q", url)
	}
	err := os.Remove(filepath.Join(l.root, rel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	return nil
}
