package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/colorspace"
	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/events"
	"github.com/dunamismax/pixelanime/internal/storage"
	"github.com/dunamismax/pixelanime/internal/store"
	"github.com/dunamismax/pixelanime/internal/stylize"
	"github.com/dunamismax/pixelanime/internal/telemetry"
)

// TextExtractor never fails; errors are folded into the returned text.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) string
}

type Dependencies struct {
	Codec     *codec.Codec
	Storage   storage.Store
	Index     store.ArtifactIndex
	Colors    *colorspace.Transformer
	OCR       TextExtractor
	Stylizer  stylize.Stylizer
	Publisher events.Publisher
	Logger    logrus.FieldLogger
}

// Processor runs uploads, conversions and exports against artifact storage.
type Processor struct {
	codec     *codec.Codec
	storage   storage.Store
	index     store.ArtifactIndex
	colors    *colorspace.Transformer
	ocr       TextExtractor
	stylizer  stylize.Stylizer
	publisher events.Publisher
	logger    logrus.FieldLogger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewProcessor(deps Dependencies) (*Processor, error) {
	switch {
	case deps.Codec == nil:
		return nil, errors.New("codec is required")
	case deps.Storage == nil:
		return nil, errors.New("artifact storage is required")
	case deps.Index == nil:
		return nil, errors.New("artifact index is required")
	case deps.OCR == nil:
		return nil, errors.New("text extractor is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "pipeline")

	colors := deps.Colors
	if colors == nil {
		colors = colorspace.NewTransformer(logger)
	}
	stylizer := deps.Stylizer
	if stylizer == nil {
		stylizer = stylize.Disabled{}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Processor{
		codec:     deps.Codec,
		storage:   deps.Storage,
		index:     deps.Index,
		colors:    colors,
		ocr:       deps.OCR,
		stylizer:  stylizer,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer(telemetry.TracerName + "/pipeline"),
		now:       time.Now,
	}, nil
}

// ModelsLoaded reports whether style transfer is active.
func (p *Processor) ModelsLoaded() bool {
	return p.stylizer.Available()
}

// saveArtifact writes data to storage and records it in the index. An index
// failure is logged only: the artifact is still served, just never expired.
func (p *Processor) saveArtifact(ctx context.Context, name, kind, source string, data []byte, contentType string) error {
	if err := p.storage.Put(ctx, name, data, contentType); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}

	artifact := domain.Artifact{
		Name:        name,
		Kind:        kind,
		Source:      source,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.index.Put(ctx, artifact); err != nil {
		p.logger.WithError(err).WithField("artifact", name).Warn("artifact index update failed")
	}
	return nil
}

// discardArtifacts removes partially written outputs. Leftovers that cannot be
// removed here are collected by retention.
func (p *Processor) discardArtifacts(ctx context.Context, names []string) {
	for _, name := range names {
		if err := p.storage.Delete(ctx, name); err != nil {
			p.logger.WithError(err).WithField("artifact", name).Warn("partial output not removed")
			continue
		}
		if err := p.index.Delete(ctx, name); err != nil && !errors.Is(err, store.ErrArtifactNotFound) {
			p.logger.WithError(err).WithField("artifact", name).Warn("partial output left in index")
		}
	}
}

func (p *Processor) loadImage(ctx context.Context, name string) (image.Image, error) {
	data, err := p.storage.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	img, _, err := p.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}
