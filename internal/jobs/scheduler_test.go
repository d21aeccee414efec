package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls []time.Time
	err   error
}

func (f *fakePurger) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	f.calls = append(f.calls, now)
	return 2, f.err
}

func TestPurgeUsesClock(t *testing.T) {
	purger := &fakePurger{}
	s := NewScheduler(purger, "0 */15 * * * *", 0, zerolog.Nop())
	fixed := time.Date(2026, 7, 1, 0, 15, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.purgeExpiredTokens()

	require.Len(t, purger.calls, 1)
	assert.Equal(t, fixed, purger.calls[0])
}

func TestPurgeKeepsRecentlyExpiredTokens(t *testing.T) {
	purger := &fakePurger{}
	s := NewScheduler(purger, "0 */15 * * * *", 7*24*time.Hour, zerolog.Nop())
	fixed := time.Date(2026, 7, 8, 0, 15, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.purgeExpiredTokens()

	require.Len(t, purger.calls, 1)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 15, 0, 0, time.UTC), purger.calls[0])
}

func TestPurgeErrorIsLoggedNotPanicked(t *testing.T) {
	s := NewScheduler(&fakePurger{err: errors.New("db down")}, "@every 1m", 0, zerolog.Nop())
	assert.NotPanics(t, s.purgeExpiredTokens)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&fakePurger{}, "not a cron spec", 0, zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartWithoutSpecIsNoop(t *testing.T) {
	s := NewScheduler(&fakePurger{}, "", 0, zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()
}
