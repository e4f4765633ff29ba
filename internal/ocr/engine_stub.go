//go:build !tesseract || !cgo

package ocr

import (
	"context"
	"errors"
)

// NewDefaultEngine returns an engine that reports OCR as unavailable; build
// with -tags tesseract to link libtesseract.
func NewDefaultEngine() Engine {
	return unavailableEngine{}
}

type unavailableEngine struct{}

func (unavailableEngine) Name() string { return "unavailable" }

func (unavailableEngine) Recognize(context.Context, []byte, []string) (string, error) {
	return "", errors.New("tesseract support is not compiled in")
}
