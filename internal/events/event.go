package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dunamismax/pixelanime/internal/domain"
	"github.com/dunamismax/pixelanime/internal/id"
)

const TypeUploadCompleted = "upload.completed"

// Event is the envelope delivered to every sink.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// UploadCompleted is the payload of TypeUploadCompleted.
type UploadCompleted struct {
	Filename string              `json:"filename"`
	Result   domain.UploadResult `json:"result"`
}

func NewUploadCompleted(filename string, result domain.UploadResult) Event {
	return Event{
		ID:         id.New(),
		Type:       TypeUploadCompleted,
		OccurredAt: time.Now().UTC(),
		Data: UploadCompleted{
			Filename: filename,
			Result:   result,
		},
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type Config struct {
	// Sink is "none", "webhook" or "kafka".
	Sink          string
	WebhookURL    string
	WebhookSecret string
	KafkaBrokers  []string
	KafkaTopic    string
	Dispatch      DispatchConfig
	Logger        logrus.FieldLogger
}

// NewPublisher builds the configured sink behind a Dispatcher, so Publish on
// the result never waits for the network.
func NewPublisher(cfg Config) (Publisher, error) {
	var (
		sink Publisher
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Sink)) {
	case "", "none":
		return Noop{}, nil
	case "webhook":
		sink, err = NewWebhookPublisher(WebhookConfig{
			Endpoint:      cfg.WebhookURL,
			SigningSecret: cfg.WebhookSecret,
			Retry:         RetryPolicy{Attempts: 3, Initial: time.Second, Max: 4 * time.Second},
		})
	case "kafka":
		sink, err = NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unsupported events sink %q", cfg.Sink)
	}
	if err != nil {
		return nil, err
	}
	return NewDispatcher(sink, cfg.Logger, cfg.Dispatch), nil
}
