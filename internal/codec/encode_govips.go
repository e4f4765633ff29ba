//go:build govips && cgo

package codec

import (
	"fmt"
	"image"

	"github.com/davidbyttow/govips/v2/vips"
)

// govipsEncoder exports jpeg, png and webp through libvips; bmp and tiff
// use the pure Go encoders.
type govipsEncoder struct {
	fallback stdlibEncoder
}

func (e govipsEncoder) Supports(format Format) bool {
	return format == FormatWEBP || e.fallback.Supports(format)
}

func (e govipsEncoder) Encode(img image.Image, format Format, quality int) ([]byte, error) {
	switch format {
	case FormatJPEG, FormatPNG, FormatWEBP:
	default:
		return e.fallback.Encode(img, format, quality)
	}

	// libvips ingests an encoded buffer, PNG is lossless and keeps alpha.
	staged, err := e.fallback.Encode(img, FormatPNG, quality)
	if err != nil {
		return nil, err
	}
	ref, err := vips.NewImageFromBuffer(staged)
	if err != nil {
		return nil, fmt.Errorf("load image into vips: %w", err)
	}
	defer ref.Close()

	switch format {
	case FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case FormatPNG:
		params := vips.NewPngExportParams()
		params.Quality = quality
		data, _, err := ref.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	default:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	}
}
