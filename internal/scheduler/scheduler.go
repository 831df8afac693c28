// Package scheduler drives the price update pipeline: on a fixed period it
// resolves a snapshot per tracked symbol, evaluates alerts against it and
// broadcasts it to subscribers.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotResolver produces the canonical snapshot for one symbol
type SnapshotResolver interface {
	Resolve(ctx context.Context, symbol string) (*model.PriceSnapshot, error)
}

// AlertEvaluator checks active alerts against a snapshot
type AlertEvaluator interface {
	Evaluate(ctx context.Context, snapshot *model.PriceSnapshot) ([]uuid.UUID, error)
}

// Broadcaster fans a snapshot out to subscribers
type Broadcaster interface {
	Publish(snapshot *model.PriceSnapshot)
}

// SnapshotRecorder persists a snapshot for later reads
type SnapshotRecorder interface {
	Record(ctx context.Context, snapshot *model.PriceSnapshot)
}

// Config holds scheduler configuration
type Config struct {
	Interval time.Duration // Delay between cycles (default: 5s)
	Timeout  time.Duration // Per-symbol task timeout (default: 10s)
	Symbols  []string      // Tracked symbols, polled regardless of subscribers
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Scheduler runs the polling loop until cancelled. Symbols within a cycle
// are processed concurrently; cycles never overlap: the delay to the next
// cycle is armed only after every symbol task of the current cycle has
// finished. Under upstream latency the cadence drifts instead of queueing
// concurrent cycles.
type Scheduler struct {
	cfg       Config
	resolver  SnapshotResolver
	evaluator AlertEvaluator
	caster    Broadcaster
	recorder  SnapshotRecorder
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. recorder may be nil.
func New(
	cfg Config,
	resolver SnapshotResolver,
	evaluator AlertEvaluator,
	caster Broadcaster,
	recorder SnapshotRecorder,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Scheduler{
		cfg:       cfg,
		resolver:  resolver,
		evaluator: evaluator,
		caster:    caster,
		recorder:  recorder,
		logger:    logger,
	}
}

// Start begins the polling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("Polling scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Strings("symbols", s.cfg.Symbols))

	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Polling scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes cycles back to back with an interruptible delay between
// them. The timer is re-armed only after runCycle returns, which is what
// keeps cycle N+1 from starting while cycle N is still in flight.
func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(0) // first cycle immediately
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.runCycle()
			timer.Reset(s.cfg.Interval)
		}
	}
}

// runCycle processes every tracked symbol concurrently and joins on all of
// them before returning
func (s *Scheduler) runCycle() {
	start := time.Now()

	var wg sync.WaitGroup
	var updated, skipped atomic.Int64

	for _, symbol := range s.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			if err := s.pollSymbol(symbol); err != nil {
				skipped.Add(1)
				return
			}
			updated.Add(1)
		}(symbol)
	}

	wg.Wait()

	s.logger.Debug("Poll cycle complete",
		zap.Int("symbols", len(s.cfg.Symbols)),
		zap.Int64("updated", updated.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Duration("duration", time.Since(start)))
}

// pollSymbol runs the pipeline for one symbol. Every failure is handled
// here; nothing propagates out of the symbol task.
func (s *Scheduler) pollSymbol(symbol string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	snapshot, err := s.resolver.Resolve(ctx, symbol)
	if err != nil {
		s.logger.Warn("Symbol skipped for this cycle",
			zap.String("symbol", symbol),
			zap.Error(err))
		return err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, snapshot)
	}

	if triggered, err := s.evaluator.Evaluate(ctx, snapshot); err != nil {
		s.logger.Error("Alert evaluation failed",
			zap.String("symbol", symbol),
			zap.Error(err))
	} else if len(triggered) > 0 {
		s.logger.Info("Alerts triggered this cycle",
			zap.String("symbol", symbol),
			zap.Int("count", len(triggered)))
	}

	s.caster.Publish(snapshot)

	s.logger.Debug("Symbol updated",
		zap.String("symbol", symbol),
		zap.String("price", snapshot.Price.String()),
		zap.String("source", string(snapshot.Source)))

	return nil
}
