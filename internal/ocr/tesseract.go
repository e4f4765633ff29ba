//go:build tesseract && cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

func NewDefaultEngine() Engine {
	return NewTesseractEngine()
}

// TesseractEngine runs recognition with a fresh gosseract client per call;
// clients are not safe for concurrent use.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
