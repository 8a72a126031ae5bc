package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		want        error
	}{
		{"jpeg", "image/jpeg", 1024, nil},
		{"jpg alias", "image/jpg", 1024, nil},
		{"png upper case", "IMAGE/PNG", 1024, nil},
		{"gif", "image/gif", 1024, nil},
		{"webp", "image/webp", MaxImageSize, nil},
		{"pdf", "application/pdf", 1024, ErrUnsupportedType},
		{"svg", "image/svg+xml", 1024, ErrUnsupportedType},
		{"too large", "image/png", MaxImageSize + 1, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.contentType, tt.size), tt.want)
		})
	}
}

func TestObjectName(t *testing.T) {
	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	name := ObjectName("ES-0042", "Foto.JPG", now, id)
	assert.Equal(t, "animales/ES-0042_20240309_140507_1b4e28ba.jpg", name)
}

func TestObjectName_NoExtension(t *testing.T) {
	name := ObjectName("A1", "photo", time.Now(), uuid.New())
	assert.True(t, strings.HasPrefix(name, "animales/A1_"))
	assert.False(t, strings.Contains(name, "."))
}

func TestObjectNameFromURL(t *testing.T) {
	base := "http://minio:9000/herdstream"

	name, ok := ObjectNameFromURL(base, base+"/animales/A1_x.png?X-Amz=1")
	assert.True(t, ok)
	assert.Equal(t, "animales/A1_x.png", name)

	_, ok = ObjectNameFromURL(base, "https://storage.googleapis.com/other/animales/A1.png")
	assert.False(t, ok)

	_, ok = ObjectNameFromURL(base+"/", base+"/")
	assert.False(t, ok)
}
