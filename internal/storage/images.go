// Package storage keeps animal profile images in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

// Folder prefixes every animal image object name.
const Folder = "animales"

var (
	ErrUnsupportedType = errors.New("tipo de archivo no permitido. Use JPEG, PNG, GIF o WebP")
	ErrTooLarge        = errors.New("el archivo es demasiado grande. Máximo 5MB")
	ErrNotOwned        = errors.New("url does not point into this bucket")
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Image is one upload ready to be stored.
type Image struct {
	AnimalID    int64
	AnimalTag   string
	UploadedBy  int64
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Stored describes an object after upload.
type Stored struct {
	URL        string `json:"url"`
	ObjectName string `json:"file_name"`
}

// ImageStore is implemented by MinioImageStore.
type ImageStore interface {
	Upload(ctx context.Context, img Image) (*Stored, error)

	// Delete removes the object behind a URL previously returned by Upload.
	// URLs pointing elsewhere return ErrNotOwned.
	Delete(ctx context.Context, url string) error
}

// Validate checks the declared content type and size.
func Validate(contentType string, size int64) error {
	if _, ok := allowedTypes[strings.ToLower(contentType)]; !ok {
		return ErrUnsupportedType
	}
	if size > MaxImageSize {
		return ErrTooLarge
	}
	return nil
}

// ObjectName builds animales/{tag}_{YYYYmmdd_HHMMSS}_{8 hex}{ext}.
func ObjectName(tag, filename string, now time.Time, id uuid.UUID) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s_%s_%s%s", Folder, tag, now.Format("20060102_150405"), id.String()[:8], ext)
}
