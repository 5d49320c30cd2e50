package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/config"
)

func testConfig() *config.Config {
	return &config.Config{AppName: "referral-tree", DashboardURL: "https://example.com/tree"}
}

func TestRenderMemberAdded(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	data := NewMemberAddedData(testConfig(), "Parent", "parent@example.com",
		WithMember("Kid", "kid@example.com", "left"), WithActor("Parent"), WithTime(at))

	subject, text, html, err := Render(MemberAdded, data)
	require.NoError(t, err)
	assert.Equal(t, "Kid joined your left slot", subject)
	assert.Contains(t, text, "Hi Parent,")
	assert.Contains(t, text, "kid@example.com")
	assert.Contains(t, text, "01 March 2026, 10:30")
	assert.Contains(t, html, `href="https://example.com/tree"`)
	// company name falls back to app name
	assert.Contains(t, text, "referral-tree")
}

func TestRenderMemberRemovedMentionsOrphans(t *testing.T) {
	data := NewMemberRemovedData(testConfig(), "Parent", "parent@example.com",
		WithMember("Kid", "kid@example.com", "right"), WithOrphans(2))

	subject, text, _, err := Render(MemberRemoved, data)
	require.NoError(t, err)
	assert.Equal(t, "Kid was removed from your right slot", subject)
	assert.Contains(t, text, "2 of their direct referrals")

	data = NewMemberRemovedData(testConfig(), "Parent", "parent@example.com", WithMember("Kid", "kid@example.com", "right"))
	_, text, _, err = Render(MemberRemoved, data)
	require.NoError(t, err)
	assert.NotContains(t, text, "direct referrals")
}

func TestHTMLEscapesMemberName(t *testing.T) {
	data := NewMemberAddedData(testConfig(), "Parent", "parent@example.com",
		WithMember("<b>x</b>", "kid@example.com", "left"))
	_, _, html, err := Render(MemberAdded, data)
	require.NoError(t, err)
	assert.NotContains(t, html, "<b>x</b>")
	assert.Contains(t, html, "&lt;b&gt;x&lt;/b&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	assert.False(t, Known("welcome"))
	_, _, _, err := Render("welcome", nil)
	assert.Error(t, err)
}
