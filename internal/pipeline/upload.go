package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/colorspace"
	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/events"
	"github.com/dunamismax/pixelanime/internal/id"
	"github.com/dunamismax/pixelanime/internal/stylize"
)

type upload struct {
	hex      string
	original string
	format   codec.Format
	ext      string
}

// Upload validates and stores an uploaded image, then derives the style,
// color and OCR outputs. Only validation and the original write can fail the
// request; every derived branch is best effort.
func (p *Processor) Upload(ctx context.Context, filename string, data []byte) (domain.UploadResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.upload")
	defer span.End()

	ext, err := domain.UploadExtension(filename)
	if err != nil {
		span.SetStatus(codes.Error, "invalid upload")
		return domain.UploadResult{}, err
	}

	img, _, err := p.codec.Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "undecodable upload")
		return domain.UploadResult{}, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}

	up := upload{hex: id.New()}
	up.original = id.ArtifactName("", up.hex, ext)
	up.format, up.ext = p.artifactFormat(ext)

	contentType := "application/octet-stream"
	if f, err := codec.ParseFormat(ext); err == nil {
		contentType = f.ContentType()
	}
	if err := p.saveArtifact(ctx, up.original, domain.KindOriginal, filename, data, contentType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store original failed")
		return domain.UploadResult{}, err
	}

	span.SetAttributes(
		attribute.String("upload.name", up.original),
		attribute.Int("upload.width", img.Bounds().Dx()),
		attribute.Int("upload.height", img.Bounds().Dy()),
	)

	rgb := codec.Opaque(img)
	result := domain.UploadResult{
		Original:  domain.PublicURL(up.original),
		Converted: make(map[string]string, len(colorspace.UploadKinds)),
	}

	p.stylizeBranch(ctx, rgb, up, &result)
	if err := ctx.Err(); err != nil {
		return domain.UploadResult{}, err
	}
	p.colorBranch(ctx, rgb, up, &result)
	if err := ctx.Err(); err != nil {
		return domain.UploadResult{}, err
	}
	result.Text = p.ocrBranch(ctx, rgb)

	// Publishers from events.NewPublisher only enqueue; delivery happens off
	// the request path.
	if err := p.publisher.Publish(ctx, events.NewUploadCompleted(filename, result)); err != nil {
		p.logger.WithError(err).WithField("upload", up.original).Warn("upload event not delivered")
	}

	span.SetAttributes(attribute.Int("upload.converted", len(result.Converted)))
	span.SetStatus(codes.Ok, "uploaded")
	return result, nil
}

// artifactFormat picks the encoding for derived artifacts: the upload's own
// format when this build can write it, PNG otherwise.
func (p *Processor) artifactFormat(ext string) (codec.Format, string) {
	format, err := codec.ParseFormat(ext)
	if err == nil && p.codec.CanEncode(format) {
		return format, ext
	}
	return codec.FormatPNG, "png"
}

// stylizeBranch renders every variant before writing any of them. One failed
// variant skips the whole branch.
func (p *Processor) stylizeBranch(ctx context.Context, rgb image.Image, up upload, result *domain.UploadResult) {
	if !p.stylizer.Available() {
		return
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.stylize")
	defer span.End()

	type rendered struct {
		variant stylize.Variant
		name    string
		data    []byte
	}
	outputs := make([]rendered, 0, len(stylize.Variants))
	for _, variant := range stylize.Variants {
		out, err := p.stylizer.Stylize(ctx, rgb, variant)
		if err == nil {
			var data []byte
			data, err = p.codec.Encode(out, up.format, codec.DefaultQuality)
			if err == nil {
				outputs = append(outputs, rendered{
					variant: variant,
					name:    id.ArtifactName(string(variant), up.hex, up.ext),
					data:    data,
				})
				continue
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stylize failed")
		p.logger.WithError(err).WithFields(logrus.Fields{
			"upload":  up.original,
			"variant": variant,
		}).Error("style transfer failed, skipping styled outputs")
		return
	}

	saved := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := p.saveArtifact(ctx, out.name, domain.KindConverted, up.original, out.data, up.format.ContentType()); err != nil {
			span.RecordError(err)
			p.logger.WithError(err).WithField("upload", up.original).Error("styled output not stored, skipping styled outputs")
			p.discardArtifacts(ctx, saved)
			return
		}
		saved = append(saved, out.name)
	}
	for _, out := range outputs {
		result.SetStyle(string(out.variant), domain.PublicURL(out.name))
	}
}

// colorBranch converts to every upload kind independently.
func (p *Processor) colorBranch(ctx context.Context, rgb image.Image, up upload, result *domain.UploadResult) {
	ctx, span := p.tracer.Start(ctx, "pipeline.color")
	defer span.End()

	for _, kind := range colorspace.UploadKinds {
		name := id.ArtifactName(string(kind), up.hex, up.ext)
		if err := p.convertOne(ctx, rgb, kind, up, name); err != nil {
			span.RecordError(err)
			p.logger.WithError(err).WithFields(logrus.Fields{
				"upload": up.original,
				"kind":   kind,
			}).Error("color conversion failed")
			continue
		}
		result.Converted[string(kind)] = domain.PublicURL(name)
	}
	span.SetAttributes(attribute.Int("color.outputs", len(result.Converted)))
}

func (p *Processor) convertOne(ctx context.Context, rgb image.Image, kind colorspace.Kind, up upload, name string) error {
	out, err := p.colors.Transform(ctx, rgb, kind, nil)
	if err != nil {
		return err
	}
	data, err := p.codec.Encode(colorspace.Storable(out), up.format, codec.DefaultQuality)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return p.saveArtifact(ctx, name, domain.KindConverted, up.original, data, up.format.ContentType())
}

func (p *Processor) ocrBranch(ctx context.Context, rgb image.Image) string {
	ctx, span := p.tracer.Start(ctx, "pipeline.ocr")
	defer span.End()
	text := p.ocr.ExtractText(ctx, rgb)
	span.SetAttributes(attribute.Int("ocr.chars", len(text)))
	return text
}
