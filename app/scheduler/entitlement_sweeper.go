// Package scheduler runs the periodic entitlement jobs
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/robfig/cron/v3"
)

const (
	defaultExpirePremiumSpec = "@every 5m"
	defaultStalePendingSpec  = "@every 15m"
	stalePendingReportLimit  = 100
	jobTimeout               = 2 * time.Minute
)

// SweeperConfig holds the cron specs and thresholds of the sweeper
type SweeperConfig struct {
	ExpirePremiumSpec string
	StalePendingSpec  string
	StalePendingAfter time.Duration
}

// EntitlementSweeper expires lapsed premium windows in bulk and reports attempts that never got
// a callback. It complements the lazy expiry done on read and never fails a pending attempt.
type EntitlementSweeper struct {
	cron         *cron.Cron
	entitlements businessflow.EntitlementFlow
	logger       *log.Logger
	cfg          SweeperConfig
}

func NewEntitlementSweeper(entitlements businessflow.EntitlementFlow, logger *log.Logger, cfg SweeperConfig) *EntitlementSweeper {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ExpirePremiumSpec == "" {
		cfg.ExpirePremiumSpec = defaultExpirePremiumSpec
	}
	if cfg.StalePendingSpec == "" {
		cfg.StalePendingSpec = defaultStalePendingSpec
	}
	if cfg.StalePendingAfter <= 0 {
		cfg.StalePendingAfter = 15 * time.Minute
	}

	cronLogger := cron.PrintfLogger(logger)
	return &EntitlementSweeper{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		entitlements: entitlements,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start registers the jobs and starts the cron loop. The returned function stops it and waits
// for running jobs.
func (s *EntitlementSweeper) Start() (func(), error) {
	if _, err := s.cron.AddFunc(s.cfg.ExpirePremiumSpec, s.ExpirePremium); err != nil {
		return nil, fmt.Errorf("schedule premium expiry job: %w", err)
	}
	s.logger.Printf("scheduled premium expiry job (%s)", s.cfg.ExpirePremiumSpec)

	if _, err := s.cron.AddFunc(s.cfg.StalePendingSpec, s.ReportStalePending); err != nil {
		return nil, fmt.Errorf("schedule stale pending job: %w", err)
	}
	s.logger.Printf("scheduled stale pending job (%s)", s.cfg.StalePendingSpec)

	s.cron.Start()
	return func() {
		<-s.cron.Stop().Done()
	}, nil
}

func (s *EntitlementSweeper) ExpirePremium() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.entitlements.ExpireLapsedPremium(ctx)
	if err != nil {
		s.logger.Printf("premium expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("premium expiry sweep cleared %d lapsed window(s)", n)
	}
}

func (s *EntitlementSweeper) ReportStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stale, err := s.entitlements.ReportStalePending(ctx, s.cfg.StalePendingAfter, stalePendingReportLimit)
	if err != nil {
		s.logger.Printf("stale pending report failed: %v", err)
		return
	}
	for _, attempt := range stale {
		s.logger.Printf("stale pending attempt %s: account=%d provider=%s token=%s age=%s",
			attempt.UUID, attempt.AccountID, attempt.Provider, attempt.CorrelationToken,
			time.Since(attempt.CreatedAt).Round(time.Second))
	}
}
