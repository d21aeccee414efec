package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUndeliverable marks a job that can never succeed, however often it is
// retried.
var ErrUndeliverable = errors.New("undeliverable mail job")

type Processor struct {
	sender    Sender
	templates map[JobType]template
	logger    zerolog.Logger
}

func NewProcessor(sender Sender, logger zerolog.Logger) (*Processor, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Processor{
		sender:    sender,
		templates: templates,
		logger:    logger,
	}, nil
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	job, err := jobFromValues(msg.Values)
	if err != nil {
		return fmt.Errorf("%w: decode job: %v", ErrUndeliverable, err)
	}

	tpl, ok := p.templates[job.Type]
	if !ok {
		p.logger.Warn().Str("type", string(job.Type)).Str("message_id", msg.ID).Msg("unknown mail job type")
		return nil
	}

	rendered, err := p.render(job, tpl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}

	if err := p.sender.Send(ctx, rendered); err != nil {
		return err
	}

	p.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("mail delivered")
	return nil
}

func (p *Processor) render(job Job, tpl template) (Message, error) {
	body, err := tpl.body.Execute(pongo2.Context{
		"name": job.Name,
		"url":  job.URL,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", job.Type, err)
	}
	return Message{
		To:      job.To,
		Subject: tpl.subject,
		Body:    body,
	}, nil
}
