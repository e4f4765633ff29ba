package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	NoTextDetected = "No text detected in the image."
	errorPrefix    = "Error in OCR: "
)

// Engine recognises text in a PNG-encoded image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

type Extractor struct {
	engine    Engine
	languages []string
	logger    logrus.FieldLogger
}

func NewExtractor(engine Engine, languages []string, logger logrus.FieldLogger) *Extractor {
	if engine == nil {
		engine = NewDefaultEngine()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{engine: engine, languages: languages, logger: logger}
}

func (e *Extractor) EngineName() string {
	return e.engine.Name()
}

func (e *Extractor) ExtractText(ctx context.Context, img image.Image) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = failure(fmt.Errorf("panic: %v", r))
		}
	}()

	if img == nil {
		return failure(fmt.Errorf("no image"))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return failure(fmt.Errorf("encode png: %w", err))
	}

	raw, err := e.engine.Recognize(ctx, buf.Bytes(), e.languages)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"engine": e.engine.Name(),
			"error":  err,
		}).Warn("ocr failed")
		return failure(err)
	}

	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return NoTextDetected
}

func failure(err error) string {
	return errorPrefix + err.Error()
}
