package mail

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
)

type template struct {
	subject string
	body    *pongo2.Template
}

const verifyEmailBody = `Hi {{ name|default:"there"|safe }},

Welcome to Visit Ethiopia! Please confirm your email address by opening the link below:

{{ url|safe }}

The link is valid for 24 hours. If you did not create an account, you can ignore this message.
`

const passwordResetBody = `Hi {{ name|default:"there"|safe }},

Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:

{{ url|safe }}

The link is valid for 10 minutes. If you didn't forget your password, please ignore this email.
`

func loadTemplates() (map[JobType]template, error) {
	sources := map[JobType]struct {
		subject string
		body    string
	}{
		JobVerifyEmail:   {"Verify your Visit Ethiopia account", verifyEmailBody},
		JobPasswordReset: {"Your password reset token (valid for 10 min)", passwordResetBody},
	}

	out := make(map[JobType]template, len(sources))
	for kind, src := range sources {
		tpl, err := pongo2.FromString(src.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		out[kind] = template{subject: src.subject, body: tpl}
	}
	return out, nil
}
