package mailer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailtpl "github.com/oksasatya/referral-tree/pkg/mailer/templates"
)

func TestRenderTemplateJobFromQueuePayload(t *testing.T) {
	payload := []byte(`{"to":"parent@example.com","template":"member_added",
		"data":{"Name":"Parent","MemberName":"Kid","MemberEmail":"kid@example.com","Side":"right"}}`)
	var job EmailJob
	require.NoError(t, json.Unmarshal(payload, &job))

	subject, text, html, err := job.Render()
	require.NoError(t, err)
	assert.Equal(t, "Kid joined your right slot", subject)
	assert.Contains(t, text, "kid@example.com")
	assert.NotEmpty(t, html)
	assert.Equal(t, "parent@example.com", job.Data["RecipientEmail"])
}

func TestRenderSubjectOverride(t *testing.T) {
	job := EmailJob{To: "a@example.com", Subject: "Custom", Template: mailtpl.MemberRemoved, Data: map[string]any{"Side": "left"}}
	subject, _, _, err := job.Render()
	require.NoError(t, err)
	assert.Equal(t, "Custom", subject)
}

func TestRenderPlainJob(t *testing.T) {
	job := EmailJob{To: "a@example.com", Subject: "Hi", Text: "body"}
	subject, text, html, err := job.Render()
	require.NoError(t, err)
	assert.Equal(t, "Hi", subject)
	assert.Equal(t, "body", text)
	assert.Empty(t, html)
}

func TestRenderRejectsBadJobs(t *testing.T) {
	_, _, _, err := (&EmailJob{Text: "x"}).Render()
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, _, _, err = (&EmailJob{To: "a@example.com"}).Render()
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, _, _, err = (&EmailJob{To: "a@example.com", Template: "welcome"}).Render()
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}
