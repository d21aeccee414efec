package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"visitethiopia/api/internal/ids"
)

type streamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Outbox appends mail jobs to a redis stream drained by cmd/mailer. It only
// fails when the job could not be queued; delivery happens out of band.
type Outbox struct {
	client streamWriter
	stream string
	log    zerolog.Logger
}

func NewOutbox(client streamWriter, stream string, log zerolog.Logger) *Outbox {
	return &Outbox{
		client: client,
		stream: stream,
		log:    log,
	}
}

func (o *Outbox) SendVerification(ctx context.Context, to, name, url string) error {
	return o.enqueue(ctx, Job{Type: JobVerifyEmail, To: to, Name: name, URL: url})
}

func (o *Outbox) SendPasswordReset(ctx context.Context, to, name, url string) error {
	return o.enqueue(ctx, Job{Type: JobPasswordReset, To: to, Name: name, URL: url})
}

func (o *Outbox) enqueue(ctx context.Context, job Job) error {
	job.ID = ids.New()
	id, err := o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		Values: job.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s mail: %w", job.Type, err)
	}

	o.log.Debug().
		Str("job_id", job.ID).
		Str("stream_id", id).
		Str("type", string(job.Type)).
		Msg("mail queued")
	return nil
}
