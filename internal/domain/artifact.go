package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	KindOriginal  = "original"
	KindConverted = "converted"

	StyleCeleba  = "celeba"
	StyleFaceV1  = "facev1"
	StyleFaceV2  = "facev2"
	StylePaprika = "paprika"

	// PublicPrefix is the URL path stored artifacts are served under.
	PublicPrefix = "/static/images/"

	// MaxUploadBytes bounds a single request body.
	MaxUploadBytes = 16 << 20
)

var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"bmp":  {},
	"tiff": {},
	"webp": {},
}

var (
	ErrValidation      = errors.New("validation failed")
	ErrNoFile          = fmt.Errorf("%w: no file selected", ErrValidation)
	ErrInvalidFileType = fmt.Errorf("%w: invalid file type, please upload a valid image file", ErrValidation)
	ErrInvalidFilename = fmt.Errorf("%w: invalid filename", ErrValidation)
	ErrUnreadableImage = fmt.Errorf("%w: file is not a readable image", ErrValidation)
)

// Artifact describes one stored image file.
type Artifact struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// URL is the public path of the artifact.
func (a Artifact) URL() string {
	return PublicURL(a.Name)
}

func PublicURL(name string) string {
	return PublicPrefix + name
}

// UploadExtension returns the lowercased extension after the last dot of an
// uploaded filename and reports whether it is an accepted image type.
func UploadExtension(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", ErrNoFile
	}
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", ErrInvalidFileType
	}
	ext := strings.ToLower(filename[idx+1:])
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrInvalidFileType
	}
	return ext, nil
}

// ValidateArtifactName rejects names that could escape the artifact directory.
func ValidateArtifactName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: filename is required", ErrInvalidFilename)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.HasPrefix(name, "."), filepath.Base(name) != name:
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}
