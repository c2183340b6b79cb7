package media

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Minimal PNG header, enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type failingStorage struct{}

func (failingStorage) Upload(context.Context, UploadInput) (string, error) {
	return "", errors.New("bucket unavailable")
}

func newTestService(storage Storage) *Service {
	return NewService(storage, 1024, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestUploadImage_StoresInMemory(t *testing.T) {
	store := NewMemoryStorage("http://cdn.local/media/")
	svc := newTestService(store)

	url, err := svc.UploadImage(context.Background(), UploadInput{
		Filename: "Photo.PNG", ContentType: "image/png", Size: int64(len(pngBytes)),
		Body: bytes.NewReader(pngBytes), OwnerID: "seller-1",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://cdn.local/media/products/seller-1/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	key := strings.TrimPrefix(url, "http://cdn.local/media/")
	data, ok := store.Object(key)
	require.True(t, ok)
	assert.Equal(t, pngBytes, data)
}

func TestUploadImage_Rejections(t *testing.T) {
	svc := newTestService(NewMemoryStorage("http://cdn.local"))

	tests := []struct {
		name string
		in   UploadInput
	}{
		{"empty", UploadInput{ContentType: "image/png", Size: 0, Body: bytes.NewReader(nil)}},
		{"too large", UploadInput{ContentType: "image/png", Size: 2048, Body: bytes.NewReader(pngBytes)}},
		{"not image type", UploadInput{ContentType: "application/pdf", Size: 10, Body: bytes.NewReader([]byte("%PDF-1.4"))}},
		{"spoofed content", UploadInput{ContentType: "image/png", Size: 11, Body: strings.NewReader("hello world")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadImage(context.Background(), tc.in)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestUploadImage_StorageFailureIsUpstream(t *testing.T) {
	svc := newTestService(failingStorage{})
	_, err := svc.UploadImage(context.Background(), UploadInput{
		Filename: "a.png", ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	})
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
}
