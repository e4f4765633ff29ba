package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/domain"
)

const DefaultExportQuality = 95

// Download is a re-encoded artifact ready to stream as an attachment.
type Download struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Export re-encodes a stored artifact. PNG keeps alpha; other formats drop it.
func (p *Processor) Export(ctx context.Context, filename, format string, quality int) (Download, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.export")
	defer span.End()
	span.SetAttributes(
		attribute.String("export.source", filename),
		attribute.String("export.format", format),
	)

	if err := domain.ValidateArtifactName(filename); err != nil {
		span.SetStatus(codes.Error, "invalid filename")
		return Download{}, err
	}

	target, err := codec.ParseFormat(format)
	if err != nil {
		span.SetStatus(codes.Error, "unsupported format")
		return Download{}, err
	}
	if !p.codec.CanEncode(target) {
		span.SetStatus(codes.Error, "unsupported format")
		return Download{}, fmt.Errorf("%w: %s export is not available in this build", codec.ErrUnsupportedFormat, target)
	}

	img, err := p.loadImage(ctx, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return Download{}, err
	}

	data, err := p.codec.Export(img, target, min(max(quality, 1), 100))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return Download{}, fmt.Errorf("export %s as %s: %w", filename, target, err)
	}

	span.SetStatus(codes.Ok, "exported")
	return Download{
		Data:        data,
		ContentType: target.ContentType(),
		Filename:    DownloadName(filename, format),
	}, nil
}

// DownloadName is "converted_" + the last '_' segment of filename without
// its extension + "." + the requested format in lower case.
func DownloadName(filename, format string) string {
	stem := filename
	if idx := strings.LastIndex(stem, "_"); idx >= 0 {
		stem = stem[idx+1:]
	}
	if idx := strings.Index(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	return "converted_" + stem + "." + strings.ToLower(strings.TrimSpace(format))
}

// Artifact returns the stored bytes of a named artifact and its content type.
func (p *Processor) Artifact(ctx context.Context, name string) ([]byte, string, error) {
	if err := domain.ValidateArtifactName(name); err != nil {
		return nil, "", err
	}
	data, err := p.storage.Get(ctx, name)
	if err != nil {
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if f, err := codec.ParseFormat(path.Ext(name)); err == nil {
		contentType = f.ContentType()
	}
	return data, contentType, nil
}

// ExportFormats lists the download formats this build can encode.
func (p *Processor) ExportFormats() []string {
	out := make([]string, 0, 5)
	for _, f := range []codec.Format{codec.FormatJPEG, codec.FormatPNG, codec.FormatWEBP, codec.FormatBMP, codec.FormatTIFF} {
		if p.codec.CanEncode(f) {
			out = append(out, strings.ToUpper(string(f)))
		}
	}
	return out
}
