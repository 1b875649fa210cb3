package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"barnlabs/api/internal/repository"
	"barnlabs/api/internal/storage"
)

// Scheduler runs the periodic reconciliation work: aborting multipart
// sessions that outlived the retention window and purging expired shares.
// Stale sessions are reclaimed by age, not by live cancellation.
type Scheduler struct {
	cron      *cron.Cron
	store     *storage.ObjectStore
	shares    *repository.ShareRepository
	retention time.Duration
	log       zerolog.Logger
}

func NewScheduler(store *storage.ObjectStore, shares *repository.ShareRepository, retention time.Duration, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		store:     store,
		shares:    shares,
		retention: retention,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepStaleUploads); err != nil { // hourly
		return err
	}
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.purgeExpiredShares); err != nil { // daily
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs up to a short grace period.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepStaleUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	swept, err := s.store.SweepStaleUploads(ctx, s.retention)
	if err != nil {
		s.log.Error().Err(err).Msg("stale upload sweep failed")
		return
	}
	if swept > 0 {
		s.log.Info().Int("swept", swept).Msg("stale upload sessions reclaimed")
	}
}

func (s *Scheduler) purgeExpiredShares() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.shares.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expired share purge failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("purged", purged).Msg("expired shares removed")
	}
}
