package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type stdlibEncoder struct{}

func (stdlibEncoder) Supports(format Format) bool {
	switch format {
	case FormatJPEG, FormatPNG, FormatBMP, FormatTIFF:
		return true
	default:
		return false
	}
}

func (stdlibEncoder) Encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatBMP:
		if err := bmp.Encode(&buf, toDrawable(img)); err != nil {
			return nil, fmt.Errorf("encode bmp: %w", err)
		}
	case FormatTIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
	case FormatWEBP:
		return nil, errors.New("webp export requires govips build tag")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
