// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/i18n"
	"codeberg.org/naturkirken/medlemsportal/internal/templates"
	"github.com/a-h/templ"
	"github.com/wneessen/go-mail"
)

// Service sends transactional email over SMTP.
type Service struct {
	cfg      *config.SMTPConfig
	codeTTL  time.Duration
	dialSend func(ctx context.Context, msg *mail.Msg) error
}

// NewService creates a new email service. codeTTL is quoted in the
// verification email.
func NewService(cfg *config.SMTPConfig, codeTTL time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{cfg: cfg, codeTTL: codeTTL}
	s.dialSend = s.deliver
	return s, nil
}

// SendVerificationCode sends the sign-in code in the locale of the context.
func (s *Service) SendVerificationCode(ctx context.Context, to, code string) error {
	msg, err := s.BuildVerificationCode(ctx, to, code)
	if err != nil {
		return err
	}
	return s.dialSend(ctx, msg)
}

// BuildVerificationCode assembles the sign-in code message without sending it.
func (s *Service) BuildVerificationCode(ctx context.Context, to, code string) (*mail.Msg, error) {
	minutes := int(s.codeTTL / time.Minute)

	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)
	if err := templates.VerificationCodeEmail(code, minutes).Render(ctx, buf); err != nil {
		return nil, fmt.Errorf("rendering email: %w", err)
	}

	msg, err := s.newMsg(to, i18n.T(ctx, "email_code_subject"))
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextPlain, templates.VerificationCodeText(ctx, code, minutes))
	msg.AddAlternativeString(mail.TypeTextHTML, buf.String())
	return msg, nil
}

func (s *Service) newMsg(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	return msg, nil
}

// clientOptions builds the go-mail options for the configured transport.
func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS on 465, STARTTLS elsewhere
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// deliver sends a message via SMTP using go-mail.
func (s *Service) deliver(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
