package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translucent(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: uint8(x * 10), B: uint8(y * 10), A: 128})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"JPEG": FormatJPEG,
		"jpg":  FormatJPEG,
		".png": FormatPNG,
		"Tif":  FormatTIFF,
		"bmp":  FormatBMP,
		"webp": FormatWEBP,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	src := Opaque(translucent(12, 8))
	for _, format := range []Format{FormatPNG, FormatJPEG, FormatBMP, FormatTIFF} {
		t.Run(string(format), func(t *testing.T) {
			data, err := c.Encode(src, format, 90)
			require.NoError(t, err)

			decoded, got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, format, got)
			assert.Equal(t, src.Bounds().Size(), decoded.Bounds().Size())
		})
	}
}

func TestExportPNGKeepsAlphaJPEGDropsIt(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	src := translucent(4, 4)

	pngData, err := c.Export(src, FormatPNG, 95)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(pngData))
	require.NoError(t, err)
	_, _, _, a := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(128*0x101), a)

	jpegData, err := c.Export(src, FormatJPEG, 95)
	require.NoError(t, err)
	decoded, _, err = c.Decode(jpegData)
	require.NoError(t, err)
	_, _, _, a = decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestOpaqueKeepsColourValues(t *testing.T) {
	out := Opaque(translucent(2, 2))
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 10, A: 255}, out.NRGBAAt(1, 1))
}

func TestEncodeCMYKAndGray(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	cmyk := image.NewCMYK(image.Rect(0, 0, 3, 3))
	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	for _, img := range []image.Image{cmyk, gray} {
		for _, format := range []Format{FormatPNG, FormatJPEG, FormatBMP, FormatTIFF} {
			_, err := c.Encode(img, format, 0)
			assert.NoError(t, err, "%T as %s", img, format)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, _, err = c.Decode([]byte("not an image"))
	assert.Error(t, err)
}
