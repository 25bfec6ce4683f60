// Package retention purges readings that fall outside the rolling horizon.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
)

// Deleter is the slice of the Reading Store the sweeper needs
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes readings older than the retention horizon on a fixed period.
// A failed sweep is logged and retried on the next tick.
type Sweeper struct {
	store    Deleter
	days     int
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *logger.Logger

	cron    *cron.Cron
	running sync.Mutex
	initial sync.WaitGroup
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithNow replaces time.Now for cutoff arithmetic
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithTimeout bounds a single sweep
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

func NewSweeper(store Deleter, days int, interval time.Duration, log *logger.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		days:     days,
		interval: interval,
		timeout:  5 * time.Minute,
		now:      time.Now,
		logger:   log.WithComponent("retention_sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Start runs one sweep in the background immediately, then one per interval
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.tick()
	}()

	s.cron.Start()
	s.logger.Logger.Info().
		Int("retention_days", s.days).
		Dur("interval", s.interval).
		Msg("Retention sweeper started")
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.logger.Info("Retention sweeper stopped")
}

// RunOnce deletes readings received before now minus the horizon
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	s.running.Lock()
	defer s.running.Unlock()

	cutoff := s.now().AddDate(0, 0, -s.days)
	start := time.Now()
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.Logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Dur("took", time.Since(start)).
		Msg("Retention sweep complete")
	return deleted, nil
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorWithError(err, "Retention sweep failed, retrying next tick")
	}
}

// cronLogger adapts the zerolog wrapper to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
