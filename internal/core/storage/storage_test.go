package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := s.Put(ctx, "logos/a.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/logos/a.png", url)

	b, err := os.ReadFile(filepath.Join(dir, "logos", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))

	require.NoError(t, s.Delete(ctx, url))
	assert.NoFileExists(t, filepath.Join(dir, "logos", "a.png"))
	// 重复删除、外部 URL 都忽略
	assert.NoError(t, s.Delete(ctx, url))
	assert.NoError(t, s.Delete(ctx, "https://cdn.example.com/x.png"))
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	url, err := s.Put(context.Background(), "../../etc/passwd", "", strings.NewReader("x"), 1)
	// path.Clean 之后落在根目录内
	require.NoError(t, err)
	assert.Equal(t, "/uploads/etc/passwd", url)

	_, err = s.Put(context.Background(), "", "", strings.NewReader("x"), 1)
	assert.Error(t, err)
}
