package colorspace

import (
	"image/color"
	"math"
)

const (
	hsvShift       = 12
	float32Epsilon = 1.1920929e-07
)

var (
	sdivTable [256]int32
	hdivTable [256]int32
)

func init() {
	for i := 1; i < 256; i++ {
		sdivTable[i] = int32(math.Round(float64(255<<hsvShift) / float64(i)))
		hdivTable[i] = int32(math.Round(float64(180<<hsvShift) / (6 * float64(i))))
	}
}

// rgbToHSV returns H in [0,180), S and V in [0,255] packed as R, G, B.
func rgbToHSV(c color.NRGBA) color.NRGBA {
	r, g, b := int32(c.R), int32(c.G), int32(c.B)

	v := max(r, g, b)
	vmin := min(r, g, b)
	diff := v - vmin

	var vr, vg int32
	if v == r {
		vr = -1
	}
	if v == g {
		vg = -1
	}

	s := (diff*sdivTable[v] + (1 << (hsvShift - 1))) >> hsvShift
	h := (vr & (g - b)) + (^vr & ((vg & (b - r + 2*diff)) + (^vg & (r - g + 4*diff))))
	h = (h*hdivTable[diff] + (1 << (hsvShift - 1))) >> hsvShift
	if h < 0 {
		h += 180
	}

	return color.NRGBA{R: uint8(h), G: uint8(s), B: uint8(v), A: c.A}
}

var hsvSectors = [6][3]int{{1, 3, 0}, {1, 0, 2}, {3, 0, 1}, {0, 2, 1}, {0, 1, 3}, {2, 1, 0}}

// hsvToRGB inverts rgbToHSV for H in [0,180).
func hsvToRGB(h, s, v uint8) color.NRGBA {
	hf := float32(h)
	sf := float32(s) * (1.0 / 255.0)
	vf := float32(v) * (1.0 / 255.0)

	var r, g, b float32
	if sf == 0 {
		r, g, b = vf, vf, vf
	} else {
		hf *= 6.0 / 180.0
		hf = float32(math.Mod(float64(hf), 6))
		if hf < 0 {
			hf += 6
		}
		sector := int(math.Floor(float64(hf)))
		hf -= float32(sector)
		if sector < 0 || sector >= 6 {
			sector, hf = 0, 0
		}

		tab := [4]float32{
			vf,
			vf * (1 - sf),
			vf * (1 - sf*hf),
			vf * (1 - sf*(1-hf)),
		}
		b = tab[hsvSectors[sector][0]]
		g = tab[hsvSectors[sector][1]]
		r = tab[hsvSectors[sector][2]]
	}

	return color.NRGBA{R: roundByte(r * 255), G: roundByte(g * 255), B: roundByte(b * 255), A: 255}
}

// rgbToHLS returns H in [0,180], L and S in [0,255] packed as R, G, B.
func rgbToHLS(c color.NRGBA) color.NRGBA {
	const scale = 1.0 / 255.0
	r, g, b := float32(c.R)*scale, float32(c.G)*scale, float32(c.B)*scale

	vmax := max(r, g, b)
	vmin := min(r, g, b)
	diff := vmax - vmin
	l := (vmax + vmin) * 0.5

	var h, s float32
	if diff > float32Epsilon {
		if l < 0.5 {
			s = diff / (vmax + vmin)
		} else {
			s = diff / (2 - vmax - vmin)
		}
		diff = 60 / diff
		switch vmax {
		case r:
			h = (g - b) * diff
		case g:
			h = (b-r)*diff + 120
		default:
			h = (r-g)*diff + 240
		}
		if h < 0 {
			h += 360
		}
	}

	return color.NRGBA{R: roundByte(h * 0.5), G: roundByte(l * 255), B: roundByte(s * 255), A: c.A}
}

// roundByte rounds half to even and saturates to [0,255].
func roundByte(v float32) uint8 {
	r := math.RoundToEven(float64(v))
	if r <= 0 {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}
