package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeArtifactSweep = "artifact:sweep"

type SweepPayload struct {
	// Reason is "startup" or "schedule".
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewSweepTask(payload SweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal sweep payload: %w", err)
	}
	return asynq.NewTask(TypeArtifactSweep, body), nil
}

func ParseSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepPayload{}, fmt.Errorf("unmarshal sweep payload: %w", err)
	}
	return payload, nil
}
