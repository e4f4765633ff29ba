package stylize

import (
	"errors"
	"fmt"
	"strings"
)

type Variant string

const (
	Celeba  Variant = "celeba"
	FaceV1  Variant = "facev1"
	FaceV2  Variant = "facev2"
	Paprika Variant = "paprika"
)

// Variants lists every style in the order results are produced.
var Variants = []Variant{Celeba, FaceV1, FaceV2, Paprika}

// DefaultModels maps each variant to the pretrained generator weights it uses.
var DefaultModels = map[Variant]string{
	Celeba:  "celeba_distill",
	FaceV1:  "face_paint_512_v1",
	FaceV2:  "face_paint_512_v2",
	Paprika: "paprika",
}

var (
	ErrModelUnavailable = errors.New("style transfer models are unavailable")
	ErrUnknownVariant   = errors.New("unknown style variant")
)

func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := DefaultModels[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
	return v, nil
}
