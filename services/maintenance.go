package services

import (
	"context"
	"time"

	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"

	"github.com/go-co-op/gocron"
)

// MaintenanceScheduler runs the periodic housekeeping jobs. Right now
// that is one job: failing extraction sessions stuck in running longer
// than the TTL, which happens when a worker dies mid-ingestion.
type MaintenanceScheduler struct {
	scheduler  *gocron.Scheduler
	extraction *ExtractionStore
	ttl        time.Duration
	cron       string
}

func NewMaintenanceScheduler(cfg *config.Config, extraction *ExtractionStore) *MaintenanceScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &MaintenanceScheduler{
		scheduler:  s,
		extraction: extraction,
		ttl:        time.Duration(cfg.StaleSessionTTLMinutes) * time.Minute,
		cron:       cfg.StaleSweepCron,
	}
}

func (m *MaintenanceScheduler) Start() error {
	_, err := m.scheduler.Cron(m.cron).Tag("stale-session-sweep").Do(m.sweepStaleSessions)
	if err != nil {
		return err
	}
	m.scheduler.StartAsync()
	return nil
}

func (m *MaintenanceScheduler) Stop() {
	m.scheduler.Stop()
}

func (m *MaintenanceScheduler) sweepStaleSessions() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.ttl)
	failed, err := m.extraction.MarkStaleSessions(ctx, cutoff)
	if err != nil {
		logger.Error("stale session sweep failed", "error", err)
		return err
	}
	if failed > 0 {
		logger.Info("stale sessions failed by sweeper", "count", failed, "older_than", cutoff)
	}
	return nil
}
