// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Naturkirken",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := NewService(cfg, 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := NewService(cfg, 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestBuildVerificationCode(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)
	ctx := i18n.WithLocale(context.Background(), language.English)

	msg, err := svc.BuildVerificationCode(ctx, "anna@example.com", "042917")
	require.NoError(t, err)

	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"anna@example.com"}, recipients)
	assert.Equal(t, []string{"Your sign-in code"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "042917")
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "text/plain")
}

func TestBuildVerificationCode_InvalidRecipient(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	_, err = svc.BuildVerificationCode(context.Background(), "not an address", "042917")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
}

func TestSendVerificationCode_UsesTransport(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	var sent *mail.Msg
	svc.dialSend = func(_ context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	require.NoError(t, svc.SendVerificationCode(context.Background(), "anna@example.com", "042917"))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"Din innloggingskode"}, sent.GetGenHeader(mail.HeaderSubject))
}

func TestSendVerificationCode_TransportError(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)
	svc.dialSend = func(context.Context, *mail.Msg) error { return errors.New("connection refused") }

	err = svc.SendVerificationCode(context.Background(), "anna@example.com", "042917")

	assert.EqualError(t, err, "connection refused")
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*config.SMTPConfig)
		expected int
	}{
		{"starttls with auth", func(*config.SMTPConfig) {}, 5},
		{"implicit tls", func(c *config.SMTPConfig) { c.Port = 465 }, 6},
		{"no tls no auth", func(c *config.SMTPConfig) { c.TLS = false; c.Username = "" }, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSMTPConfig()
			tt.modify(cfg)
			svc, err := NewService(cfg, 10*time.Minute)
			require.NoError(t, err)

			assert.Len(t, svc.clientOptions(), tt.expected)
		})
	}
}
