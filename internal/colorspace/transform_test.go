package colorspace

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: uint8(((x + y) * 97) % 256),
				A: 255,
			})
		}
	}
	return img
}

func nrgbaAt(t *testing.T, img image.Image, x, y int) color.NRGBA {
	t.Helper()
	out, ok := img.(*image.NRGBA)
	require.True(t, ok, "expected *image.NRGBA, got %T", img)
	return out.NRGBAAt(x, y)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestApplySolidColor(t *testing.T) {
	src := solid(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	tests := []struct {
		kind Kind
		want color.NRGBA
	}{
		{kind: Invert, want: color.NRGBA{R: 245, G: 235, B: 225, A: 255}},
		{kind: Sepia, want: color.NRGBA{R: 24, G: 22, B: 17, A: 255}},
		{kind: HSV, want: color.NRGBA{R: 105, G: 170, B: 30, A: 255}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			out, err := Apply(src, tt.kind, nil)
			require.NoError(t, err)
			assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())
			assert.Equal(t, tt.want, nrgbaAt(t, out, 2, 1))
		})
	}
}

func TestApplyGrayscaleIsSingleChannel(t *testing.T) {
	out, err := Apply(solid(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), Grayscale, nil)
	require.NoError(t, err)

	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(18), gray.GrayAt(1, 1).Y)

	white, err := Apply(solid(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), Grayscale, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), white.(*image.Gray).GrayAt(0, 0).Y)
}

func TestApplySepiaClampsChannels(t *testing.T) {
	out, err := Apply(solid(1, 1, color.NRGBA{R: 200, G: 200, B: 200, A: 255}), Sepia, nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 240, B: 187, A: 255}, nrgbaAt(t, out, 0, 0))
}

func TestApplyCMYK(t *testing.T) {
	out, err := Apply(solid(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), CMYK, nil)
	require.NoError(t, err)

	cmyk, ok := out.(*image.CMYK)
	require.True(t, ok)
	assert.Equal(t, color.CMYK{C: 245, M: 235, Y: 225, K: 0}, cmyk.CMYKAt(0, 1))
}

func TestStorablePacksCMYKChannels(t *testing.T) {
	out, err := Apply(solid(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), CMYK, nil)
	require.NoError(t, err)

	packed := Storable(out)
	assert.Equal(t, color.NRGBA{R: 245, G: 235, B: 225, A: 255}, nrgbaAt(t, packed, 1, 1))

	// A generic RGB conversion would round-trip to the source color.
	r, g, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestStorablePassesOtherImagesThrough(t *testing.T) {
	src := solid(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Same(t, src, Storable(src))
}

func TestApplyHSLKeepsHLSOrder(t *testing.T) {
	out, err := Apply(solid(1, 1, color.NRGBA{R: 0, G: 0, B: 255, A: 255}), HSL, nil)
	require.NoError(t, err)
	// hue 240deg halved, lightness 0.5, saturation 1.
	assert.Equal(t, color.NRGBA{R: 120, G: 128, B: 255, A: 255}, nrgbaAt(t, out, 0, 0))

	gray, err := Apply(solid(1, 1, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), HSL, nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 128, B: 0, A: 255}, nrgbaAt(t, gray, 0, 0))
}

func TestApplyIsDeterministic(t *testing.T) {
	src := gradient(32, 16)
	for _, kind := range []Kind{Grayscale, Sepia, Invert, CMYK, HSV, HSL, HSVAdjust, Enhance} {
		params := Params{"h": 1.3, "s": 0.7, "v": 1.1, "factor": 1.8}
		first, err := Apply(src, kind, params)
		require.NoError(t, err, kind)
		second, err := Apply(src, kind, params)
		require.NoError(t, err, kind)
		assert.Equal(t, first, second, kind)
	}
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	src := gradient(8, 8)
	before := append([]uint8(nil), src.Pix...)

	for _, kind := range []Kind{Grayscale, Sepia, Invert, CMYK, HSV, HSL, HSVAdjust, Enhance} {
		_, err := Apply(src, kind, Params{"factor": 0})
		require.NoError(t, err)
	}
	assert.Equal(t, before, src.Pix)
}

func TestHSVAdjustUnitFactorsIsIdentityUpToRounding(t *testing.T) {
	src := gradient(64, 64)
	out, err := Apply(src, HSVAdjust, Params{"h": 1, "s": 1, "v": 1})
	require.NoError(t, err)

	adjusted := out.(*image.NRGBA)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			a, b := src.NRGBAAt(x, y), adjusted.NRGBAAt(x, y)
			assert.InDelta(t, a.R, b.R, 6, "R at %d,%d", x, y)
			assert.InDelta(t, a.G, b.G, 6, "G at %d,%d", x, y)
			assert.InDelta(t, a.B, b.B, 6, "B at %d,%d", x, y)
		}
	}

	primaries := []color.NRGBA{
		{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255},
		{R: 128, G: 128, B: 128, A: 255}, {A: 255},
	}
	for _, c := range primaries {
		out, err := Apply(solid(1, 1, c), HSVAdjust, nil)
		require.NoError(t, err)
		assert.Equal(t, c, nrgbaAt(t, out, 0, 0))
	}
}

func TestHSVAdjustValueZeroIsBlackAndHueWraps(t *testing.T) {
	out, err := Apply(solid(1, 1, color.NRGBA{R: 200, G: 40, B: 90, A: 255}), HSVAdjust, Params{"v": 0})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 255}, nrgbaAt(t, out, 0, 0))

	// Negative hue factors wrap into [0,180) instead of failing.
	_, err = Apply(solid(1, 1, color.NRGBA{R: 200, G: 40, B: 90, A: 255}), HSVAdjust, Params{"h": -2.5})
	require.NoError(t, err)
}

func TestEnhance(t *testing.T) {
	src := gradient(16, 16)

	same, err := Apply(src, Enhance, Params{"factor": 1})
	require.NoError(t, err)
	assert.Equal(t, src.Pix, same.(*image.NRGBA).Pix)

	flat, err := Apply(solid(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), Enhance, Params{"factor": 0})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 18, G: 18, B: 18, A: 255}, nrgbaAt(t, flat, 0, 0))

	vivid, err := Apply(solid(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), Enhance, Params{"factor": 2})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 2, G: 22, B: 42, A: 255}, nrgbaAt(t, vivid, 0, 0))
}

func TestApplyRejectsUnknownKindAndBadInput(t *testing.T) {
	_, err := Apply(gradient(2, 2), Kind("posterize"), nil)
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = Apply(image.NewNRGBA(image.Rect(0, 0, 0, 0)), Invert, nil)
	assert.ErrorIs(t, err, ErrProcessingFailure)

	_, err = Apply(gradient(2, 2), Enhance, Params{"factor": math.Inf(1)})
	assert.ErrorIs(t, err, ErrProcessingFailure)
}

func TestTransformerReturnsSourceOnFailure(t *testing.T) {
	var observed []error
	tr := NewTransformer(quietLogger(), WithObserver(func(_ Kind, err error, _ time.Duration) {
		observed = append(observed, err)
	}))
	src := gradient(4, 4)

	out, err := tr.Transform(context.Background(), src, HSVAdjust, Params{"h": math.NaN()})
	require.NoError(t, err)
	assert.Same(t, src, out)

	out, err = tr.Transform(context.Background(), src, Invert, nil)
	require.NoError(t, err)
	assert.NotSame(t, src, out)

	require.Len(t, observed, 2)
	assert.True(t, errors.Is(observed[0], ErrProcessingFailure))
	assert.NoError(t, observed[1])
}

func TestTransformerFailsClosedOnUnknownKind(t *testing.T) {
	tr := NewTransformer(quietLogger())
	out, err := tr.Transform(context.Background(), gradient(2, 2), Kind("rgba"), nil)
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.Nil(t, out)
}

func TestTransformerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTransformer(nil).Transform(ctx, gradient(2, 2), Invert, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" HSV_Adjust ")
	require.NoError(t, err)
	assert.Equal(t, HSVAdjust, kind)

	_, err = ParseKind("lab")
	assert.ErrorIs(t, err, ErrInvalidKind)
}
