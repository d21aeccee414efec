package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroup struct {
	streamGroup
	acked   []string
	pending []redis.XPendingExt
	claimed map[string]redis.XMessage
}

func (f *fakeGroup) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeGroup) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(f.pending)
	return cmd
}

func (f *fakeGroup) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	var msgs []redis.XMessage
	for _, id := range a.Messages {
		if msg, ok := f.claimed[id]; ok {
			msgs = append(msgs, msg)
		}
	}
	return redis.NewXMessageSliceCmdResult(msgs, nil)
}

func newTestConsumer(t *testing.T, group *fakeGroup, sender *fakeSender) *Consumer {
	t.Helper()
	p, err := NewProcessor(sender, zerolog.Nop())
	require.NoError(t, err)
	return NewConsumer(group, "mail:outbox", "mailers", "mailer-test", time.Second, zerolog.Nop(), p)
}

func TestConsumerAcksDeliveredMail(t *testing.T) {
	group := &fakeGroup{}
	sender := &fakeSender{}
	c := newTestConsumer(t, group, sender)

	c.process(context.Background(), redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"type": "verify_email", "to": "a@example.com", "url": "u"},
	})

	assert.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"1-0"}, group.acked)
}

func TestConsumerLeavesFailedSendPending(t *testing.T) {
	group := &fakeGroup{}
	c := newTestConsumer(t, group, &fakeSender{err: errors.New("smtp down")})

	c.process(context.Background(), redis.XMessage{
		ID:     "2-0",
		Values: map[string]interface{}{"type": "password_reset", "to": "a@example.com", "url": "u"},
	})

	assert.Empty(t, group.acked)
}

func TestConsumerAcksUndecodableJob(t *testing.T) {
	group := &fakeGroup{}
	sender := &fakeSender{}
	c := newTestConsumer(t, group, sender)

	c.process(context.Background(), redis.XMessage{
		ID:     "3-0",
		Values: map[string]interface{}{"type": "verify_email"},
	})

	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"3-0"}, group.acked)
}

func TestClaimStalledDropsUndecodableJob(t *testing.T) {
	group := &fakeGroup{
		pending: []redis.XPendingExt{
			{ID: "4-0", Idle: time.Minute},
			{ID: "5-0", Idle: time.Millisecond},
		},
		claimed: map[string]redis.XMessage{
			"4-0": {ID: "4-0", Values: map[string]interface{}{"type": "verify_email"}},
			"5-0": {ID: "5-0", Values: map[string]interface{}{"type": "verify_email", "to": "b@example.com"}},
		},
	}
	sender := &fakeSender{}
	c := newTestConsumer(t, group, sender)

	require.NoError(t, c.claimStalled(context.Background()))

	assert.Equal(t, []string{"4-0"}, group.acked, "only idle entries are claimed")
	assert.Empty(t, sender.sent)
}
