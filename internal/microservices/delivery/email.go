package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidEmail      = errors.New("invalid email message")
	ErrFailedToSendEmail = errors.New("failed to send email")
)

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Tag     string
}

func (m EmailMessage) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrInvalidEmail, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidEmail)
	}
	if m.HTML == "" && m.Text == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidEmail)
	}
	return nil
}

// EmailSender reports true when the provider accepted the message
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (bool, error)
}

type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	SenderEmail  string
	SupportEmail string
}

type postmarkSender struct {
	client *postmark.Client
	config PostmarkConfig
}

// NewPostmarkSender needs both tokens and a valid sender address
func NewPostmarkSender(cfg PostmarkConfig) (EmailSender, error) {
	if cfg.ServerToken == "" || cfg.AccountToken == "" {
		return nil, errors.New("postmark: server and account tokens are required")
	}
	if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("postmark: sender email: %w", err)
	}
	return &postmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}, nil
}

func (p *postmarkSender) Send(ctx context.Context, msg EmailMessage) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}

	replyTo := p.config.SupportEmail
	if replyTo == "" {
		replyTo = p.config.SenderEmail
	}
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:       p.config.SenderEmail,
		ReplyTo:    replyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return false, errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return false, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return true, nil
}

// LogEmailSender prints emails instead of sending them, for local development
type LogEmailSender struct {
	Logger *slog.Logger
}

func (s LogEmailSender) Send(_ context.Context, msg EmailMessage) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email_logged", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag, "text", msg.Text)
	return true, nil
}
