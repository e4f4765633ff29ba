package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	text  string
	err   error
	panic bool
	got   []byte
	langs []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, img []byte, languages []string) (string, error) {
	if f.panic {
		panic("engine exploded")
	}
	f.got = img
	f.langs = languages
	return f.text, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sample() image.Image {
	return image.NewGray(image.Rect(0, 0, 8, 4))
}

func TestExtractTextTrimsRecognisedText(t *testing.T) {
	engine := &fakeEngine{text: "\n  Hello OCR \n\n"}
	ex := NewExtractor(engine, []string{"eng"}, quietLogger())

	assert.Equal(t, "Hello OCR", ex.ExtractText(context.Background(), sample()))
	assert.Equal(t, []string{"eng"}, engine.langs)

	decoded, err := png.Decode(bytes.NewReader(engine.got))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
}

func TestExtractTextSentinelWhenBlank(t *testing.T) {
	ex := NewExtractor(&fakeEngine{text: " \t\n"}, nil, quietLogger())
	assert.Equal(t, NoTextDetected, ex.ExtractText(context.Background(), sample()))
}

func TestExtractTextNeverFails(t *testing.T) {
	failing := NewExtractor(&fakeEngine{err: errors.New("no traineddata")}, nil, quietLogger())
	assert.Equal(t, "Error in OCR: no traineddata", failing.ExtractText(context.Background(), sample()))

	panicking := NewExtractor(&fakeEngine{panic: true}, nil, quietLogger())
	assert.Contains(t, panicking.ExtractText(context.Background(), sample()), "Error in OCR: panic")

	assert.Contains(t, failing.ExtractText(context.Background(), nil), "Error in OCR:")
}
