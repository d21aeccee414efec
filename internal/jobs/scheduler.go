package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TokenPurger clears single-use secrets whose expiry has passed.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron   *cron.Cron
	purger TokenPurger
	spec   string
	grace  time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewScheduler purges tokens that expired more than grace ago.
func NewScheduler(purger TokenPurger, spec string, grace time.Duration, log zerolog.Logger) *Scheduler {
	if grace < 0 {
		grace = 0
	}
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		purger: purger,
		spec:   spec,
		grace:  grace,
		log:    log,
		now:    time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.purger == nil || s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.purgeExpiredTokens); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running purge to finish, up to five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.purger.PurgeExpiredTokens(ctx, s.now().Add(-s.grace))
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired tokens failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("users", purged).Msg("expired tokens purged")
	}
}
