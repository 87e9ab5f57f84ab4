// Package media stores uploaded images on local disk or in Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/resale-market/internal/config"
)

// Asset is a stored file. Key is what Delete needs to remove it.
type Asset struct {
	URL string `json:"url"`
	Key string `json:"-"`
}

type Storage interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (Asset, error)
	Delete(ctx context.Context, asset Asset) error
}

// Folders used by the service.
const (
	FolderProducts  = "products"
	FolderProfiles  = "profiles"
	FolderBrandLogo = "brands"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type, allowed: .jpg, .jpeg, .png, .gif, .webp")
	ErrTooLarge        = errors.New("file too large")
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ValidateImage checks the extension and size of an upload.
func ValidateImage(filename string, size, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return ErrUnsupportedType
	}
	if size > maxSize {
		return fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxSize)
	}
	return nil
}

// objectName replaces the client filename with a random one, keeping the
// extension.
func objectName(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

// New returns Cloudinary storage when it is configured and local disk
// storage otherwise.
func New(cfg config.MediaConfig) (Storage, error) {
	if cfg.CloudinaryURL != "" {
		return NewCloudinaryStorage(cfg.CloudinaryURL)
	}
	return NewLocalStorage(cfg.UploadDir, cfg.BaseURL), nil
}
