package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore 上传文件的落地位置；Put 返回可对外访问的 URL
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// ---- local ----

// FileStore 写本地目录，由 HTTP 层以 PublicBase 前缀静态暴露
type FileStore struct {
	Dir        string
	PublicBase string
}

func NewFileStore(dir, publicBase string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	return &FileStore{Dir: dir, PublicBase: strings.TrimRight(publicBase, "/")}, nil
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || strings.HasPrefix(k, "..") {
		return "", fmt.Errorf("storage: bad key %q", key)
	}
	return k, nil
}

func (s *FileStore) Put(_ context.Context, key, _ string, r io.Reader, _ int64) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.PublicBase + "/" + k, nil
}

func (s *FileStore) Delete(_ context.Context, url string) error {
	k := strings.TrimPrefix(url, s.PublicBase+"/")
	if k == url {
		return nil // 不是本存储的文件
	}
	k, err := cleanKey(k)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.Dir, filepath.FromSlash(k)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ---- minio / S3 ----

type MinioOpts struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // 为空时使用 endpoint
}

type MinioStore struct {
	cli    *minio.Client
	bucket string
	base   string
}

func NewMinioStore(ctx context.Context, o MinioOpts) (*MinioStore, error) {
	cli, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}
	base := strings.TrimRight(o.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if o.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + o.Endpoint
	}
	return &MinioStore{cli: cli, bucket: o.Bucket, base: base + "/" + o.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.cli.PutObject(ctx, s.bucket, k, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put: %w", err)
	}
	return s.base + "/" + k, nil
}

func (s *MinioStore) Delete(ctx context.Context, url string) error {
	k := strings.TrimPrefix(url, s.base+"/")
	if k == url {
		return nil
	}
	return s.cli.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{})
}
