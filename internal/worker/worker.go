// Package worker runs periodic background jobs next to the HTTP server.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// ErrInvalidInterval is returned by Start for a non-positive interval.
var ErrInvalidInterval = errors.New("worker: interval must be positive")

// Job performs one round of work and reports how many items it handled.
type Job func(ctx context.Context) (int, error)

// Periodic runs a Job on a fixed interval, starting immediately.
type Periodic struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger
	onDone   func(n int)
}

// Option configures a Periodic.
type Option func(*Periodic)

// WithLogger sets the worker logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Periodic) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithReport is called after every successful round with its count.
func WithReport(fn func(n int)) Option {
	return func(p *Periodic) { p.onDone = fn }
}

// NewPeriodic runs job every interval under name.
func NewPeriodic(name string, interval time.Duration, job Job, opts ...Option) *Periodic {
	p := &Periodic{name: name, interval: interval, job: job, logger: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start blocks until ctx is done. Job failures are logged and retried on
// the next tick.
func (p *Periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return ErrInvalidInterval
	}
	log := p.logger.With(logger.Component(p.name))
	log.InfoContext(ctx, "worker started", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.round(ctx, log)
		select {
		case <-ctx.Done():
			log.InfoContext(context.WithoutCancel(ctx), "worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Periodic) round(ctx context.Context, log *slog.Logger) {
	start := time.Now()
	n, err := p.job(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.LogAttrs(ctx, slog.LevelError, "worker round failed", logger.Error(err))
		}
		return
	}
	if p.onDone != nil {
		p.onDone(n)
	}
	if n > 0 {
		log.LogAttrs(ctx, slog.LevelInfo, "worker round done",
			slog.Int("count", n), logger.Duration(time.Since(start)))
	}
}

// Run returns Start as a function suitable for errgroup.
func (p *Periodic) Run(ctx context.Context) func() error {
	return func() error { return p.Start(ctx) }
}
