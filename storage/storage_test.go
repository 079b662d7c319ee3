package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/quill/config"
)

func TestObjectName(t *testing.T) {
	name := ObjectName(".PNG", time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(name, "posts/2024/05/07/"), name)
	assert.True(t, strings.HasSuffix(name, ".png"), name)
	assert.NotEqual(t, name, ObjectName("png", time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)))
}

func TestLocalSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(root, "/media/")

	url, err := l.Save(ctx, "posts/2024/01/01/a.png", bytes.NewReader([]byte("data")), 4, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/media/posts/2024/01/01/a.png", url)

	b, err := os.ReadFile(filepath.Join(root, "posts", "2024", "01", "01", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	require.NoError(t, l.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(root, "posts", "2024", "01", "01", "a.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, l.Delete(ctx, url), "deleting twice is fine")
	assert.NoError(t, l.Delete(ctx, "https://elsewhere.example/x.png"))
	assert.Error(t, l.Delete(ctx, "/media/../etc/passwd"))
}

type mockObjectClient struct {
	mock.Mock
}

func (m *mockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(bucketName, objectName, objectSize, opts.ContentType)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, args.Error(0)
}

func (m *mockObjectClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(bucketName, objectName)
	return args.Error(0)
}

func TestMinioSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	client := new(mockObjectClient)
	client.On("PutObject", "media", "posts/a.png", int64(4), "image/png").Return(nil)
	client.On("RemoveObject", "media", "posts/a.png").Return(nil)

	m := NewMinioWithClient(client, "media", "https://cdn.example/media")
	url, err := m.Save(ctx, "posts/a.png", bytes.NewReader([]byte("data")), 4, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/media/posts/a.png", url)

	require.NoError(t, m.Delete(ctx, url))
	require.NoError(t, m.Delete(ctx, "/media/local.png"))
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "RemoveObject", 1)
}

func TestNewPicksBackend(t *testing.T) {
	m, err := New(config.AppConfig{MediaBackend: "local", MediaRoot: t.TempDir(), MediaURL: "/media/"})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, m)

	_, err = New(config.AppConfig{MediaBackend: "ftp"})
	assert.Error(t, err)
}
