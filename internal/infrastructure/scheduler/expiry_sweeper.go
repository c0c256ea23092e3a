package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pharmaledger/backend/internal/infrastructure/config"
	"github.com/pharmaledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BatchExpirer retires every batch whose expiry date has passed and returns
// how many were retired
type BatchExpirer interface {
	ExpireBatches(ctx context.Context) (int, error)
}

// SweepRecorder observes sweep outcomes
type SweepRecorder interface {
	RecordSweep(ctx context.Context, err error)
}

type ExpirySweeperConfig struct {
	Enabled      bool
	Interval     time.Duration
	Timeout      time.Duration
	RunOnStartup bool
}

func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		Enabled:      true,
		Interval:     time.Hour,
		Timeout:      5 * time.Minute,
		RunOnStartup: true,
	}
}

// ExpirySweeperConfigFrom maps the ledger config section
func ExpirySweeperConfigFrom(cfg config.LedgerConfig) ExpirySweeperConfig {
	out := DefaultExpirySweeperConfig()
	out.Enabled = cfg.ExpirySweepEnabled
	if cfg.ExpirySweepInterval > 0 {
		out.Interval = cfg.ExpirySweepInterval
	}
	if cfg.ExpirySweepTimeout > 0 {
		out.Timeout = cfg.ExpirySweepTimeout
	}
	return out
}

// ExpirySweeper periodically marks lapsed batches expired so they stop
// counting toward stock.
type ExpirySweeper struct {
	expirer  BatchExpirer
	recorder SweepRecorder
	config   ExpirySweeperConfig
	logger   *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewExpirySweeper creates a sweeper. recorder may be nil.
func NewExpirySweeper(expirer BatchExpirer, recorder SweepRecorder, cfg ExpirySweeperConfig, logger *zap.Logger) (*ExpirySweeper, error) {
	if cfg.Enabled && cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExpirySweeperConfig().Timeout
	}
	return &ExpirySweeper{
		expirer:  expirer,
		recorder: recorder,
		config:   cfg,
		logger:   logger.Named("expiry_sweeper"),
	}, nil
}

func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Expiry sweeper is disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Expiry sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_startup", s.config.RunOnStartup))
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep, or for ctx
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Expiry sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStartup {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep bounded by the configured timeout.
// Overlapping calls fail with ErrSweepInProgress.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	var expired int
	err := telemetry.LedgerOperation(ctx, "expiry_sweep", func(ctx context.Context) error {
		var err error
		expired, err = s.expirer.ExpireBatches(ctx)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("ledger.batches_expired", expired))
		return err
	})
	if s.recorder != nil {
		s.recorder.RecordSweep(ctx, err)
	}
	if err != nil {
		return expired, err
	}

	if expired > 0 {
		s.logger.Info("Expired batches retired",
			zap.Int("count", expired),
			zap.Duration("elapsed", time.Since(start)))
	} else {
		s.logger.Debug("Expiry sweep found nothing to retire")
	}
	return expired, nil
}
