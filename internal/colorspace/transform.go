package colorspace

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Apply runs one transform and returns a new image. src is never modified.
func Apply(src image.Image, kind Kind, params Params) (image.Image, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrProcessingFailure)
	}

	switch kind {
	case Grayscale:
		return toGray(src), nil
	case Sepia:
		return toSepia(src), nil
	case Invert:
		return imaging.Invert(src), nil
	case CMYK:
		return toCMYK(src), nil
	case HSV:
		return mapPixels(src, rgbToHSV), nil
	case HSL:
		return mapPixels(src, rgbToHLS), nil
	case HSVAdjust:
		h, s, v := params.Factor("h"), params.Factor("s"), params.Factor("v")
		if err := checkFinite(h, s, v); err != nil {
			return nil, err
		}
		return adjustHSV(src, h, s, v), nil
	case Enhance:
		factor := params.Factor("factor")
		if err := checkFinite(factor); err != nil {
			return nil, err
		}
		return enhanceColor(src, factor), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

// Observer is told the outcome of every best-effort transform.
type Observer func(kind Kind, err error, elapsed time.Duration)

type Transformer struct {
	logger   logrus.FieldLogger
	observer Observer
}

type Option func(*Transformer)

func WithObserver(o Observer) Option {
	return func(t *Transformer) { t.observer = o }
}

func NewTransformer(logger logrus.FieldLogger, opts ...Option) *Transformer {
	t := &Transformer{logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform is the best-effort form of Apply. Unknown kinds still fail with
// ErrInvalidKind. Any other failure, including a panic inside the transform,
// is logged and src is returned unchanged with a nil error, so callers must
// treat an output identical to src as a possible silent failure.
func (t *Transformer) Transform(ctx context.Context, src image.Image, kind Kind, params Params) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := ParseKind(string(kind)); err != nil {
		t.observe(kind, err, 0)
		return nil, err
	}

	start := time.Now()
	out, err := safeApply(src, kind, params)
	t.observe(kind, err, time.Since(start))
	if err != nil {
		if t.logger != nil {
			t.logger.WithFields(logrus.Fields{
				"kind":  kind,
				"error": err,
			}).Warn("color transform failed, returning source image")
		}
		return src, nil
	}
	return out, nil
}

func (t *Transformer) observe(kind Kind, err error, elapsed time.Duration) {
	if t.observer != nil {
		t.observer(kind, err, elapsed)
	}
}

func safeApply(src image.Image, kind Kind, params Params) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: panic: %v", ErrProcessingFailure, r)
		}
	}()
	return Apply(src, kind, params)
}

func checkFinite(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: factor must be finite, got %v", ErrProcessingFailure, v)
		}
	}
	return nil
}

// luma is the ITU-R 601-2 transform in 16.16 fixed point.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

func toGray(src image.Image) *image.Gray {
	rgb := imaging.Clone(src)
	bounds := rgb.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		row := rgb.Pix[y*rgb.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			out[x] = luma(row[i], row[i+1], row[i+2])
		}
	}
	return dst
}

func toSepia(src image.Image) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		return color.NRGBA{
			R: truncClamp(0.393*r + 0.769*g + 0.189*b),
			G: truncClamp(0.349*r + 0.686*g + 0.168*b),
			B: truncClamp(0.272*r + 0.534*g + 0.131*b),
			A: c.A,
		}
	})
}

// toCMYK is the naive complement conversion: no black extraction, K is 0.
func toCMYK(src image.Image) *image.CMYK {
	rgb := imaging.Clone(src)
	bounds := rgb.Bounds()
	dst := image.NewCMYK(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		row := rgb.Pix[y*rgb.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			out[i] = 255 - row[i]
			out[i+1] = 255 - row[i+1]
			out[i+2] = 255 - row[i+2]
			out[i+3] = 0
		}
	}
	return dst
}

// Storable returns the image whose RGB bytes are written to disk. CMYK is
// packed like HSV and HLS: C, M and Y land in R, G and B, alpha is opaque
// and K, always 0 here, is dropped. Standard encoders would otherwise convert
// CMYK back to RGB and reproduce the source. Other images pass through.
func Storable(img image.Image) image.Image {
	cmyk, ok := img.(*image.CMYK)
	if !ok {
		return img
	}
	bounds := cmyk.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		in := cmyk.Pix[cmyk.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			out[i] = in[i]
			out[i+1] = in[i+1]
			out[i+2] = in[i+2]
			out[i+3] = 255
		}
	}
	return dst
}

func adjustHSV(src image.Image, hf, sf, vf float64) *image.NRGBA {
	hFactor, sFactor, vFactor := float32(hf), float32(sf), float32(vf)
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		hsv := rgbToHSV(c)

		h := float32(math.Mod(float64(float32(hsv.R)*hFactor), 180))
		if h < 0 {
			h += 180
		}
		s := clamp32(float32(hsv.G)*sFactor, 0, 255)
		v := clamp32(float32(hsv.B)*vFactor, 0, 255)

		out := hsvToRGB(uint8(h), uint8(s), uint8(v))
		out.A = c.A
		return out
	})
}

// enhanceColor blends the image with its own grayscale version:
// out = gray + factor*(in - gray).
func enhanceColor(src image.Image, factor float64) *image.NRGBA {
	alpha := float32(factor)
	blend := func(gray, in uint8) uint8 {
		v := float32(gray) + alpha*(float32(in)-float32(gray))
		switch {
		case v <= 0:
			return 0
		case v >= 255:
			return 255
		default:
			return uint8(v)
		}
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		l := luma(c.R, c.G, c.B)
		return color.NRGBA{R: blend(l, c.R), G: blend(l, c.G), B: blend(l, c.B), A: c.A}
	})
}

func mapPixels(src image.Image, fn func(color.NRGBA) color.NRGBA) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		out := fn(c)
		out.A = 255
		return out
	})
}

func truncClamp(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v)
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
