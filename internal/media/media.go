// Package media stores product images.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// UploadInput describes an image upload.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	OwnerID     string
}

// Storage persists uploaded objects and returns their public URL.
type Storage interface {
	Upload(ctx context.Context, in UploadInput) (string, error)
}

// Service validates uploads before handing them to storage.
type Service struct {
	storage  Storage
	maxBytes int64
	logger   *slog.Logger
}

// NewService creates a media service accepting images up to maxBytes.
func NewService(storage Storage, maxBytes int64, logger *slog.Logger) *Service {
	return &Service{storage: storage, maxBytes: maxBytes, logger: logger}
}

// MaxBytes returns the upload size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// UploadImage stores an image. The declared content type must be image/* and
// the first bytes must sniff as an image too.
func (s *Service) UploadImage(ctx context.Context, in UploadInput) (string, error) {
	if in.Size <= 0 {
		return "", apperrors.Validation("file is empty")
	}
	if in.Size > s.maxBytes {
		return "", apperrors.Validation(fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return "", apperrors.Validation("only image uploads are allowed")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperrors.Validation("could not read upload")
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", apperrors.Validation("file content is not an image")
	}
	in.Body = io.MultiReader(bytes.NewReader(head), in.Body)

	url, err := s.storage.Upload(ctx, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "image upload failed",
			slog.String("filename", in.Filename),
			slog.String("error", err.Error()),
		)
		return "", apperrors.Upstream("media storage", err)
	}

	s.logger.InfoContext(ctx, "image uploaded", slog.String("url", url))
	return url, nil
}

func objectKey(in UploadInput) string {
	ext := strings.ToLower(path.Ext(in.Filename))
	owner := in.OwnerID
	if owner == "" {
		owner = "anonymous"
	}
	return path.Join("products", owner, uuid.New().String()+ext)
}

// MinIOConfig holds object storage settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base under which objects are served.
	PublicURL string
}

// MinIOStorage stores objects in an S3-compatible bucket.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOStorage connects to MinIO and creates the bucket if missing.
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

func (m *MinIOStorage) Upload(ctx context.Context, in UploadInput) (string, error) {
	key := objectKey(in)
	_, err := m.client.PutObject(ctx, m.bucket, key, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return m.publicURL + "/" + key, nil
}

// Ping checks that the bucket is reachable.
func (m *MinIOStorage) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

// MemoryStorage keeps uploads in memory. It is used in development and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	publicURL string
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(publicURL string) *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), publicURL: strings.TrimRight(publicURL, "/")}
}

func (m *MemoryStorage) Upload(_ context.Context, in UploadInput) (string, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := objectKey(in)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return m.publicURL + "/" + key, nil
}

// Object returns a stored object by key.
func (m *MemoryStorage) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}
