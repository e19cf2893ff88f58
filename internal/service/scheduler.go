package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adilbekov/autoreel/internal/config"
)

type Scheduler struct {
	config     *config.AutomationConfig
	logger     *zap.Logger
	automation *AutomationService
	ticker     *time.Ticker
	stopCh     chan struct{}
}

func NewScheduler(cfg *config.AutomationConfig, logger *zap.Logger, automation *AutomationService) *Scheduler {
	return &Scheduler{
		config:     cfg,
		logger:     logger,
		automation: automation,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Automation scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.Interval)
	if err != nil {
		s.logger.Error("Invalid automation interval", zap.String("interval", s.config.Interval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting automation scheduler", zap.String("interval", s.config.Interval))

	s.ticker = time.NewTicker(interval)

	// Run first cycle immediately
	go func() {
		s.logger.Info("Running initial cycle")
		s.runCycle(ctx, time.Now())
	}()

	// Start periodic cycles
	go func() {
		for {
			select {
			case tick := <-s.ticker.C:
				s.logger.Info("Running scheduled cycle")
				s.runCycle(ctx, tick)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runCycle(ctx context.Context, invokedAt time.Time) {
	start := time.Now()
	s.automation.RunCycle(ctx, invokedAt)
	s.logger.Info("Cycle completed", zap.Duration("duration", time.Since(start)))
}
