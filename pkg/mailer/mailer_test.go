package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/pkg/config"
)

type fakeDialer struct {
	sent []*mail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*mail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestRenderCodeVerification(t *testing.T) {
	subject, body, err := RenderCode(PurposeEmailVerification, "Jessy AI", "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Verify Your Email - Jessy AI", subject)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "10 minutes")
}

func TestRenderCodeReset(t *testing.T) {
	subject, body, err := RenderCode(PurposePasswordReset, "Jessy AI", "654321", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Password Reset - Jessy AI", subject)
	assert.Contains(t, body, "654321")
	assert.Contains(t, body, "1 minute")
}

func TestRenderCodeUnknownPurpose(t *testing.T) {
	_, _, err := RenderCode(Purpose("other"), "x", "1", time.Minute)
	assert.Error(t, err)
}

func TestSMTPSenderSend(t *testing.T) {
	d := &fakeDialer{}
	s := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com", FromName: "Auth"}, zap.NewNop())
	s.dialer = d

	require.NoError(t, s.Send(context.Background(), "a@x.com", "Hi", "<p>hi</p>"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"a@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Auth <no-reply@example.com>"}, d.sent[0].GetHeader("From"))
}

func TestSMTPSenderSendFailure(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}, nil)
	s.dialer = &fakeDialer{err: errors.New("connection refused")}

	err := s.Send(context.Background(), "a@x.com", "Hi", "<p>hi</p>")
	assert.Error(t, err)
}

func TestNewFallsBackToLogSender(t *testing.T) {
	sender := New(config.SMTPConfig{}, nil)
	_, ok := sender.(*LogSender)
	require.True(t, ok)
	assert.ErrorIs(t, sender.Send(context.Background(), "a@x.com", "s", "b"), ErrNotConfigured)
}
