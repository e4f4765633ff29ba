package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dunamismax/pixelanime/internal/storage"
	"github.com/dunamismax/pixelanime/internal/store"
)

const DefaultBatchSize = 500

// Result summarises one sweep.
type Result struct {
	Scanned int
	Deleted int
	Failed  int
}

// Sweeper deletes artifacts older than MaxAge from storage and the index.
type Sweeper struct {
	storage storage.Store
	index   store.ArtifactIndex
	maxAge  time.Duration
	batch   int
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewSweeper(st storage.Store, index store.ArtifactIndex, maxAge time.Duration, batch int, logger logrus.FieldLogger) *Sweeper {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Sweeper{
		storage: st,
		index:   index,
		maxAge:  maxAge,
		batch:   batch,
		logger:  logger.WithField("component", "retention"),
		now:     time.Now,
	}
}

func (s *Sweeper) Enabled() bool {
	return s.maxAge > 0
}

// Sweep removes every expired artifact. Storage is cleared before the index
// entry so a failed delete is retried on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	if !s.Enabled() {
		return res, nil
	}

	cutoff := s.now().UTC().Add(-s.maxAge)
	skip := make(map[string]struct{})
	for {
		expired, err := s.index.ListOlderThan(ctx, cutoff, s.batch+len(skip))
		if err != nil {
			return res, fmt.Errorf("list expired artifacts: %w", err)
		}

		progressed := false
		for _, artifact := range expired {
			if _, failed := skip[artifact.Name]; failed {
				continue
			}
			res.Scanned++
			if err := s.remove(ctx, artifact.Name); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed++
				skip[artifact.Name] = struct{}{}
				s.logger.WithError(err).WithField("artifact", artifact.Name).Warn("artifact removal failed")
				continue
			}
			res.Deleted++
			progressed = true
		}

		if !progressed || len(expired) < s.batch+len(skip) {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"scanned": res.Scanned,
		"deleted": res.Deleted,
		"failed":  res.Failed,
	}).Info("retention sweep finished")
	return res, nil
}

func (s *Sweeper) remove(ctx context.Context, name string) error {
	if err := s.storage.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete stored artifact: %w", err)
	}
	if err := s.index.Delete(ctx, name); err != nil && !errors.Is(err, store.ErrArtifactNotFound) {
		return fmt.Errorf("delete index entry: %w", err)
	}
	return nil
}

// Run sweeps immediately and then every interval until ctx is done. Used
// when the index lives in the API process.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if !s.Enabled() || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Error("retention sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// IntervalFromSchedule extracts the period of an "@every <duration>" schedule.
func IntervalFromSchedule(schedule string) (time.Duration, error) {
	schedule = strings.TrimSpace(schedule)
	rest, ok := strings.CutPrefix(schedule, "@every ")
	if !ok {
		return 0, fmt.Errorf("schedule %q is not an @every interval", schedule)
	}
	interval, err := time.ParseDuration(strings.TrimSpace(rest))
	if err != nil {
		return 0, fmt.Errorf("parse schedule interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("schedule interval must be positive")
	}
	return interval, nil
}
