package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/config"
)

// ImageStore persists answer images and hands back the URL stored on the answer
type ImageStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL reverses Upload; false means the URL was not issued by this store
	KeyFromURL(url string) (string, bool)
}

// New builds the store selected by cfg.Provider
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Provider {
	case "minio":
		return NewMinioStore(ctx, cfg.Minio)
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

// AnswerImageKey names a stored answer image
func AnswerImageKey(answerID uint, name, ext string) string {
	return path.Join("answers", fmt.Sprintf("%d_%s%s", answerID, name, ext))
}

func trimBase(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
