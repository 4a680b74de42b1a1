package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscapesUserInput(t *testing.T) {
	html, err := Render("contact", map[string]string{
		"Name": "<script>", "Email": "a@b.c", "Subject": "hi", "Message": "hello",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestRenderTrustedKeepsCampaignHTML(t *testing.T) {
	html, err := RenderTrusted("campaign", "<h1>News</h1>", map[string]any{"UnsubscribeURL": "https://x/u/1"})
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>News</h1>")
	assert.Contains(t, html, `href="https://x/u/1"`)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "s"}))
	assert.Len(t, r.Messages(), 1)

	r.Err = errors.New("down")
	assert.Error(t, r.Send(context.Background(), Message{}))
}

func TestSMTPSenderRequiresRecipients(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25, From: "x@y.z"})
	assert.ErrorContains(t, s.Send(context.Background(), Message{Subject: "s"}), "no recipients")
}
