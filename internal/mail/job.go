package mail

import (
	"fmt"
)

type JobType string

const (
	JobVerifyEmail   JobType = "verify_email"
	JobPasswordReset JobType = "password_reset"
)

// Job is one queued email. The URL embeds a single-use secret, so jobs are
// never logged in full.
type Job struct {
	ID   string
	Type JobType
	To   string
	Name string
	URL  string
}

func (j Job) values() map[string]any {
	return map[string]any{
		"id":   j.ID,
		"type": string(j.Type),
		"to":   j.To,
		"name": j.Name,
		"url":  j.URL,
	}
}

func jobFromValues(values map[string]interface{}) (Job, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}

	job := Job{
		ID:   get("id"),
		Type: JobType(get("type")),
		To:   get("to"),
		Name: get("name"),
		URL:  get("url"),
	}
	if job.To == "" {
		return Job{}, fmt.Errorf("job %q has no recipient", job.ID)
	}
	return job, nil
}
