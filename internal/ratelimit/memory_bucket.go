package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryTokenBucket is a single-process limiter with the same refill
// semantics as RedisTokenBucket.
type MemoryTokenBucket struct {
	bucketParams
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time
}

type bucketState struct {
	tokens float64
	lastMS int64
}

func NewMemoryTokenBucket(capacity int, window time.Duration) (*MemoryTokenBucket, error) {
	params, err := newBucketParams(capacity, window)
	if err != nil {
		return nil, err
	}
	return &MemoryTokenBucket{
		bucketParams: params,
		buckets:      make(map[string]*bucketState),
		now:          time.Now,
	}, nil
}

func (l *MemoryTokenBucket) Allow(_ context.Context, subject string) (Decision, error) {
	subject = normalizeSubject(subject)
	nowMS := l.now().UTC().UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.buckets[subject]
	if !ok || time.Duration(nowMS-state.lastMS)*time.Millisecond > l.ttl {
		state = &bucketState{tokens: float64(l.capacity), lastMS: nowMS}
		l.buckets[subject] = state
	}

	elapsed := max(0, nowMS-state.lastMS)
	state.tokens = math.Min(float64(l.capacity), state.tokens+float64(elapsed)*l.refillPerMS)
	state.lastMS = nowMS

	if state.tokens >= 1 {
		state.tokens--
		return Decision{Allowed: true, Remaining: int64(math.Floor(state.tokens))}, nil
	}

	retryMS := math.Ceil((1 - state.tokens) / l.refillPerMS)
	return Decision{
		Allowed:    false,
		Remaining:  int64(math.Floor(state.tokens)),
		RetryAfter: time.Duration(retryMS) * time.Millisecond,
	}, nil
}
