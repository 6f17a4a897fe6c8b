package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const defaultSendTimeout = 20 * time.Second

var (
	// ErrInvalidMessage signals that the outbound message failed validation.
	ErrInvalidMessage = errors.New("mail: invalid message")
	// ErrSendFailed signals that the SMTP delivery attempt failed.
	ErrSendFailed = errors.New("mail: send failed")
)

// Message is a fully rendered outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers rendered messages to their recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig carries the connection settings for the SMTP relay.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	SendTimeout time.Duration
}

// SMTPSender delivers messages through an SMTP relay using go-mail.
type SMTPSender struct {
	client      *gomail.Client
	fromAddress string
	fromName    string
}

// NewSMTPSender constructs an SMTPSender from the given config.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	fromAddress := strings.TrimSpace(cfg.FromAddress)
	if fromAddress == "" {
		return nil, errors.New("mail: from address is required")
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	opts := []gomail.Option{
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if username := strings.TrimSpace(cfg.Username); username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: create smtp client: %w", err)
	}

	return &SMTPSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    strings.TrimSpace(cfg.FromName),
	}, nil
}

// Send delivers the message through the configured relay.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.client == nil {
		return errors.New("mail: sender is not initialised")
	}

	built, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) (*gomail.Msg, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(msg.TextBody) == "" && strings.TrimSpace(msg.HTMLBody) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}

	m := gomail.NewMsg()
	if s.fromName != "" {
		if err := m.FromFormat(s.fromName, s.fromAddress); err != nil {
			return nil, fmt.Errorf("%w: sender address: %v", ErrInvalidMessage, err)
		}
	} else if err := m.From(s.fromAddress); err != nil {
		return nil, fmt.Errorf("%w: sender address: %v", ErrInvalidMessage, err)
	}

	if name := strings.TrimSpace(msg.ToName); name != "" {
		if err := m.AddToFormat(name, to); err != nil {
			return nil, fmt.Errorf("%w: recipient address: %v", ErrInvalidMessage, err)
		}
	} else if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %v", ErrInvalidMessage, err)
	}

	m.Subject(subject)

	switch {
	case strings.TrimSpace(msg.HTMLBody) != "" && strings.TrimSpace(msg.TextBody) != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	case strings.TrimSpace(msg.HTMLBody) != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}
