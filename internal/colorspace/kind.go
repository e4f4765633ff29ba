package colorspace

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	Grayscale Kind = "grayscale"
	Sepia     Kind = "sepia"
	Invert    Kind = "invert"
	CMYK      Kind = "cmyk"
	HSV       Kind = "hsv"
	// HSL is labelled "hsl" on the wire but produces hue, lightness,
	// saturation channel order.
	HSL       Kind = "hsl"
	HSVAdjust Kind = "hsv_adjust"
	Enhance   Kind = "enhance"
)

// UploadKinds are the conversions generated for every upload, in response order.
var UploadKinds = []Kind{Grayscale, Sepia, Invert, CMYK, HSV, HSL}

var (
	ErrInvalidKind       = errors.New("invalid transform kind")
	ErrProcessingFailure = errors.New("transform processing failure")
)

func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case Grayscale, Sepia, Invert, CMYK, HSV, HSL, HSVAdjust, Enhance:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Params carries numeric factors. Absent keys read as 1.0.
type Params map[string]float64

func (p Params) Factor(key string) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return 1.0
}
