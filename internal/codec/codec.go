package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultQuality matches the lossy quality used when none is requested.
const DefaultQuality = 75

type encoder interface {
	Encode(img image.Image, format Format, quality int) ([]byte, error)
	Supports(format Format) bool
}

type Codec struct {
	enc encoder
}

func New() (*Codec, error) {
	enc, err := newEncoder()
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}
	return &Codec{enc: enc}, nil
}

// Decode sniffs the payload and decodes png, jpeg, bmp, tiff or webp.
func (c *Codec) Decode(data []byte) (image.Image, Format, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}
	format, err := ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

func (c *Codec) CanEncode(format Format) bool {
	return c.enc.Supports(format)
}

// Encode writes img as-is in the requested format.
func (c *Codec) Encode(img image.Image, format Format, quality int) ([]byte, error) {
	if !c.enc.Supports(format) {
		return nil, fmt.Errorf("%w: %s export is not available in this build", ErrUnsupportedFormat, format)
	}
	return c.enc.Encode(img, format, normalizeQuality(quality))
}

// Export re-encodes img for download: RGBA for formats that keep alpha,
// opaque RGB for everything else.
func (c *Codec) Export(img image.Image, format Format, quality int) ([]byte, error) {
	if format.KeepsAlpha() {
		return c.Encode(imaging.Clone(img), format, quality)
	}
	return c.Encode(Opaque(img), format, quality)
}

// Opaque drops the alpha channel without compositing: colour values are kept
// and every pixel becomes fully opaque.
func Opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func normalizeQuality(quality int) int {
	switch {
	case quality <= 0:
		return DefaultQuality
	case quality > 100:
		return 100
	default:
		return quality
	}
}

func toDrawable(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.NRGBA, *image.RGBA, *image.Paletted:
		return img
	default:
		dst := image.NewNRGBA(img.Bounds())
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
}
