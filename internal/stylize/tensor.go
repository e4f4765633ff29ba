package stylize

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultSize is the square edge length models consume and produce.
const DefaultSize = 512

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

func (t Tensor) elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Preprocess center-crops img to a square, resizes it to size x size with a
// Lanczos filter and returns a 1x3xHxW tensor scaled to [-1, 1].
func Preprocess(img image.Image, size int) Tensor {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	square := imaging.Resize(imaging.CropCenter(img, side, side), size, size, imaging.Lanczos)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := square.Pix[y*square.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4 : x*4+3]
			data[i] = float32(p[0])/255*2 - 1
			data[plane+i] = float32(p[1])/255*2 - 1
			data[2*plane+i] = float32(p[2])/255*2 - 1
		}
	}
	return Tensor{Shape: []int{1, 3, size, size}, Data: data}
}

// Postprocess maps a generator output in [-1, 1] back to an opaque image:
// clip(x*0.5+0.5, 0, 1) scaled to 8 bits with truncation. Accepts 1x3xHxW or
// 3xHxW tensors.
func Postprocess(t Tensor) (*image.NRGBA, error) {
	shape := t.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 || shape[0] != 3 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, fmt.Errorf("unexpected output shape %v", t.Shape)
	}
	if len(t.Data) != t.elements() {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(t.Data), t.Shape, t.elements())
	}

	h, w := shape[1], shape[2]
	plane := h * w
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			dst.SetNRGBA(x, y, color.NRGBA{
				R: toByte(t.Data[i]),
				G: toByte(t.Data[plane+i]),
				B: toByte(t.Data[2*plane+i]),
				A: 255,
			})
		}
	}
	return dst, nil
}

func toByte(v float32) uint8 {
	v = v*0.5 + 0.5
	switch {
	case v <= 0 || math.IsNaN(float64(v)):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v * 255)
	}
}
