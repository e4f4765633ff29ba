package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/pipeline"
	"github.com/dunamismax/pixelanime/internal/ratelimit"
	"github.com/dunamismax/pixelanime/internal/storage"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Processor is the orchestration surface the handlers depend on.
type Processor interface {
	Upload(ctx context.Context, filename string, data []byte) (domain.UploadResult, error)
	Convert(ctx context.Context, req domain.ConvertRequest) (domain.ConvertResponse, error)
	Export(ctx context.Context, filename, format string, quality int) (pipeline.Download, error)
	Artifact(ctx context.Context, name string) ([]byte, string, error)
	ExportFormats() []string
	ModelsLoaded() bool
}

type Server struct {
	logger                logrus.FieldLogger
	processor             Processor
	mux                   *http.ServeMux
	metrics               *Metrics
	tracer                trace.Tracer
	rateLimiter           ratelimit.Limiter
	rateLimitClientHeader string
}

type Option func(*Server)

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithRateLimiter limits upload, convert and download per client. The
// client is identified by header, or by remote host when the header is absent.
func WithRateLimiter(l ratelimit.Limiter, clientHeader string) Option {
	return func(s *Server) {
		s.rateLimiter = l
		s.rateLimitClientHeader = clientHeader
	}
}

func NewServer(logger logrus.FieldLogger, processor Processor, opts ...Option) *Server {
	s := &Server{
		logger:    logger.WithField("component", "api"),
		processor: processor,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /convert", s.handleConvert)
	s.mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	s.mux.HandleFunc("GET /static/images/{filename}", s.handleArtifact)
}

type indexView struct {
	ModelsLoaded   bool
	Formats        []string
	DefaultQuality int
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, indexView{
		ModelsLoaded:   s.processor.ModelsLoaded(),
		Formats:        s.processor.ExportFormats(),
		DefaultQuality: pipeline.DefaultExportQuality,
	})
	if err != nil {
		s.logger.WithError(err).Error("render index failed")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"models_loaded": s.processor.ModelsLoaded(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes)

	filename, data, err := readUpload(r)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, publicMessage(err))
		return
	}

	result, err := s.processor.Upload(r.Context(), filename, data)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusBadRequest, publicMessage(err))
			return
		}
		s.metrics.uploadsTotal.WithLabelValues("failed").Inc()
		s.logger.WithError(err).WithField("filename", filename).Error("upload failed")
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	s.metrics.uploadsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

// readUpload extracts the "file" part. The extension is validated by the
// processor so a bad name and a bad payload share one rejection path.
func readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(domain.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, domain.ErrNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, domain.ErrNoFile
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		return "", nil, domain.ErrNoFile
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req domain.ConvertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.processor.Convert(r.Context(), req)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"filename": req.Filename,
				"type":     req.Type,
			}).Error("convert failed")
		}
		writeError(w, status, publicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	query := r.URL.Query()

	format := strings.TrimSpace(query.Get("format"))
	if format == "" {
		format = "JPEG"
	}
	quality := pipeline.DefaultExportQuality
	if raw := strings.TrimSpace(query.Get("quality")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quality must be an integer")
			return
		}
		quality = parsed
	}

	download, err := s.processor.Export(r.Context(), filename, format, quality)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"filename": filename,
				"format":   format,
			}).Error("download failed")
		}
		writeError(w, status, publicMessage(err))
		return
	}

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(download.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(download.Data)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.processor.Artifact(r.Context(), r.PathValue("filename"))
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).Error("serve artifact failed")
		}
		writeError(w, status, publicMessage(err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, codec.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage strips the sentinel prefix from validation errors.
func publicMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, domain.ErrValidation) {
		msg = strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
	}
	return msg
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
