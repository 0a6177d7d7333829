package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTooManyJobs is returned when no sync job slot frees up within the queue timeout
var ErrTooManyJobs = errors.New("too many concurrent sync jobs")

// JobLimiterConfig defines how many sync jobs may run at once
type JobLimiterConfig struct {
	MaxConcurrentJobs int           // Max concurrent sync jobs
	QueueTimeout      time.Duration // Max time to wait for a slot
}

// DefaultJobLimiterConfig returns production-ready defaults
func DefaultJobLimiterConfig() *JobLimiterConfig {
	return &JobLimiterConfig{
		MaxConcurrentJobs: 2,
		QueueTimeout:      30 * time.Second,
	}
}

// JobLimiter bounds the number of concurrently running sync jobs.
// Per-product fan-out inside one job is bounded separately.
type JobLimiter struct {
	mu     sync.Mutex
	sem    chan struct{}
	config *JobLimiterConfig
	active int
}

// NewJobLimiter creates a new job limiter
func NewJobLimiter(config *JobLimiterConfig) *JobLimiter {
	if config == nil {
		config = DefaultJobLimiterConfig()
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	return &JobLimiter{
		sem:    make(chan struct{}, config.MaxConcurrentJobs),
		config: config,
	}
}

// Acquire waits for a job slot; the returned release func must be called once
func (l *JobLimiter) Acquire(ctx context.Context) (func(), error) {
	timeout := l.config.QueueTimeout
	if timeout <= 0 {
		select {
		case l.sem <- struct{}{}:
		default:
			return nil, ErrTooManyJobs
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%w: waited %s", ErrTooManyJobs, timeout)
		}
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.active--
			l.mu.Unlock()
			<-l.sem
		})
	}, nil
}

// ActiveJobs returns the number of running jobs
func (l *JobLimiter) ActiveJobs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// GetStats returns limiter statistics for the health endpoint
func (l *JobLimiter) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"activeJobs":        l.ActiveJobs(),
		"maxConcurrentJobs": l.config.MaxConcurrentJobs,
	}
}
