package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const sweepTimeout = 10 * time.Minute

// Client enqueues maintenance tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueSweep schedules an immediate sweep. Sweeps are unique for the
// timeout window, so a duplicate request is not an error.
func (c *Client) EnqueueSweep(ctx context.Context, reason string) error {
	task, err := NewSweepTask(SweepPayload{Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, SweepOptions(c.queue)...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SweepOptions are shared by one-off and periodic sweeps.
func SweepOptions(queueName string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(3),
		asynq.Timeout(sweepTimeout),
		asynq.Unique(sweepTimeout),
	}
}

// RegisterSweepSchedule adds the periodic sweep to scheduler.
func RegisterSweepSchedule(scheduler *asynq.Scheduler, cronspec, queueName string) (string, error) {
	task, err := NewSweepTask(SweepPayload{Reason: "schedule"})
	if err != nil {
		return "", err
	}
	return scheduler.Register(cronspec, task, SweepOptions(queueName)...)
}
