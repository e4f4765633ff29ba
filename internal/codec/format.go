package codec

import (
	"errors"
	"fmt"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWEBP Format = "webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// ParseFormat accepts format names and file extensions in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// KeepsAlpha reports whether exports in this format retain an alpha channel.
func (f Format) KeepsAlpha() bool {
	return f == FormatPNG
}
