package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nutriplan-app/apiserver/internal/storage"
)

// MaxUploadSize caps accepted files at five megabytes.
const MaxUploadSize = 5 << 20

var (
	ErrFileTooLarge       = errors.New("file exceeds the 5MB size limit")
	ErrUnsupportedFile    = errors.New("file type not allowed")
	ErrStorageUnavailable = errors.New("file storage is not configured")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadService stores user files in object storage under per-user keys.
type UploadService struct {
	storage *storage.Storage
}

func NewUploadService(st *storage.Storage) *UploadService {
	return &UploadService{storage: st}
}

// Save validates and stores an uploaded file, returning the object key.
// Ownership is encoded in the key prefix; the original filename only
// contributes its extension.
func (s *UploadService) Save(ctx context.Context, userID int, filename, contentType string, data []byte) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	if len(data) > MaxUploadSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedFile
	}

	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	key := fmt.Sprintf("uploads/%d/%s%s", userID, hex.EncodeToString(suffix), ext)

	if err := s.storage.PutBytes(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// IsImage reports whether the object key carries an image extension, the
// condition for using it as a profile picture.
func IsImage(key string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(key))]
}
