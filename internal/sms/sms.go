// Package sms delivers one-time codes by text message.
package sms

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a text message to a phone number
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender sends SMS through the Twilio Messages API
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender creates a Twilio backed sender
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

// Send delivers body to the given E.164 number
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)
	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}

// LogSender logs messages instead of sending them
type LogSender struct{}

// Send logs the destination only; codes never reach the log
func (LogSender) Send(_ context.Context, to, _ string) error {
	logrus.WithField("to", to).Info("sms delivery disabled, message dropped")
	return nil
}

// Recorder keeps messages in memory, for tests
type Recorder struct {
	mu       sync.Mutex
	Messages []struct{ To, Body string }
	Err      error
}

// Send records the message
func (r *Recorder) Send(_ context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, struct{ To, Body string }{to, body})
	return nil
}
