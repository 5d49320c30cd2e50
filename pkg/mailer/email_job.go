package mailer

import (
	"errors"
	"fmt"

	mailtpl "github.com/oksasatya/referral-tree/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "member_added" or "member_removed"
	Data     map[string]any `json:"data,omitempty"`
}

var (
	ErrNoRecipient     = errors.New("email job has no recipient")
	ErrUnknownTemplate = errors.New("unknown email template")
	ErrEmptyBody       = errors.New("email job has no body")
)

// EnsureRecipientAndEmail copies To into the template data when the job did not set it.
func (j *EmailJob) EnsureRecipientAndEmail() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	if v, ok := j.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		j.Data["Email"] = j.To
	}
	if v, ok := j.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		j.Data["RecipientEmail"] = j.To
	}
}

// Render resolves the final subject and bodies, rendering Template when set.
func (j *EmailJob) Render() (subject, text, html string, err error) {
	if j.To == "" {
		return "", "", "", ErrNoRecipient
	}
	if j.Template == "" {
		if j.Text == "" && j.HTML == "" {
			return "", "", "", ErrEmptyBody
		}
		return j.Subject, j.Text, j.HTML, nil
	}
	if !mailtpl.Known(j.Template) {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, j.Template)
	}
	j.EnsureRecipientAndEmail()
	subject, text, html, err = mailtpl.Render(j.Template, j.Data)
	if err != nil {
		return "", "", "", err
	}
	if j.Subject != "" {
		subject = j.Subject
	}
	return subject, text, html, nil
}
