package stylize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Generator executes one pretrained generative model.
type Generator interface {
	Ready(ctx context.Context, model string) error
	Generate(ctx context.Context, model string, input Tensor) (Tensor, error)
}

// Stylizer is what the upload pipeline depends on.
type Stylizer interface {
	Available() bool
	Stylize(ctx context.Context, img image.Image, variant Variant) (image.Image, error)
}

type Adapter struct {
	generator Generator
	models    map[Variant]string
	size      int
	logger    logrus.FieldLogger

	loadOnce  sync.Once
	loadErr   error
	available atomic.Bool
}

type Option func(*Adapter)

func WithSize(size int) Option {
	return func(a *Adapter) {
		if size > 0 {
			a.size = size
		}
	}
}

func WithModels(models map[Variant]string) Option {
	return func(a *Adapter) {
		for v, m := range models {
			if m != "" {
				a.models[v] = m
			}
		}
	}
}

func NewAdapter(generator Generator, logger logrus.FieldLogger, opts ...Option) *Adapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &Adapter{
		generator: generator,
		models:    make(map[Variant]string, len(DefaultModels)),
		size:      DefaultSize,
		logger:    logger,
	}
	for v, m := range DefaultModels {
		a.models[v] = m
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load probes every model once. Any failure disables the adapter for the
// lifetime of the process; later calls return the first result.
func (a *Adapter) Load(ctx context.Context) error {
	a.loadOnce.Do(func() {
		a.loadErr = a.load(ctx)
		if a.loadErr != nil {
			a.logger.WithError(a.loadErr).Error("style transfer models failed to load, stylization disabled")
			return
		}
		a.available.Store(true)
		a.logger.WithField("models", len(a.models)).Info("style transfer models loaded")
	})
	return a.loadErr
}

func (a *Adapter) load(ctx context.Context) error {
	if a.generator == nil {
		return errors.New("no inference backend configured")
	}
	for _, v := range Variants {
		model := a.models[v]
		if err := a.generator.Ready(ctx, model); err != nil {
			return fmt.Errorf("model %s (%s): %w", v, model, err)
		}
	}
	return nil
}

func (a *Adapter) Available() bool {
	return a.available.Load()
}

// Stylize returns a DefaultSize x DefaultSize rendering of img in the given style.
func (a *Adapter) Stylize(ctx context.Context, img image.Image, variant Variant) (image.Image, error) {
	if !a.Available() {
		return nil, ErrModelUnavailable
	}
	model, ok := a.models[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty source image")
	}

	output, err := a.generator.Generate(ctx, model, Preprocess(img, a.size))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", variant, err)
	}
	out, err := Postprocess(output)
	if err != nil {
		return nil, fmt.Errorf("postprocess %s: %w", variant, err)
	}
	return out, nil
}

// Disabled is a Stylizer that is never available.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Stylize(context.Context, image.Image, Variant) (image.Image, error) {
	return nil, ErrModelUnavailable
}
