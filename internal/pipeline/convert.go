package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/colorspace"
	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/id"
)

// Convert applies an on-demand adjustment to a stored artifact and writes
// the result as converted_<hex>.jpg.
func (p *Processor) Convert(ctx context.Context, req domain.ConvertRequest) (domain.ConvertResponse, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.convert")
	defer span.End()
	span.SetAttributes(
		attribute.String("convert.source", req.Filename),
		attribute.String("convert.type", req.Type),
	)

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return domain.ConvertResponse{}, err
	}

	kind, params := conversion(req)

	src, err := p.loadImage(ctx, req.Filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return domain.ConvertResponse{}, err
	}

	out, err := p.colors.Transform(ctx, codec.Opaque(src), kind, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		return domain.ConvertResponse{}, err
	}

	data, err := p.codec.Encode(out, codec.FormatJPEG, codec.DefaultQuality)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return domain.ConvertResponse{}, fmt.Errorf("encode converted image: %w", err)
	}

	name := id.ArtifactName("converted", id.New(), "jpg")
	if err := p.saveArtifact(ctx, name, domain.KindConverted, req.Filename, data, codec.FormatJPEG.ContentType()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return domain.ConvertResponse{}, err
	}

	span.SetStatus(codes.Ok, "converted")
	return domain.ConvertResponse{Converted: domain.PublicURL(name)}, nil
}

func conversion(req domain.ConvertRequest) (colorspace.Kind, colorspace.Params) {
	if req.Type == domain.ConvertEnhance {
		return colorspace.Enhance, colorspace.Params{"factor": req.Factor("factor")}
	}
	return colorspace.HSVAdjust, colorspace.Params{
		"h": req.Factor("h"),
		"s": req.Factor("s"),
		"v": req.Factor("v"),
	}
}
