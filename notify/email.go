package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/wneessen/go-mail"
)

// EmailConfig configures the SMTP transport.
type EmailConfig struct {
	Host     string
	Port     int // Default: 587. Port 465 uses implicit TLS.
	Username string
	Password string
	From     string // Default: Username.
	Timeout  time.Duration
}

// Mail is one logical email. Each recipient receives its own message.
type Mail struct {
	To      []string
	Subject string
	HTML    string
	// Params are emitted as X-Diario-<Key> headers.
	Params map[string]string
}

// Email sends Mail over SMTP.
type Email struct {
	config EmailConfig
	policy *bluemonday.Policy
	md     *converter.Converter
	// deliver sends one message; replaced in tests.
	deliver func(ctx context.Context, msg *mail.Msg) error
}

// NewEmail creates an Email transport.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	e := &Email{
		config: cfg,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
	e.deliver = e.dial
	return e
}

// Configured reports whether the transport can send.
func (e *Email) Configured() bool {
	return e != nil && e.config.Host != "" && e.config.From != ""
}

// Send delivers m to every recipient separately. A failure for one recipient
// does not prevent delivery to the others; all failures are joined.
func (e *Email) Send(ctx context.Context, m Mail) error {
	if !e.Configured() {
		return nil
	}
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	safe := e.policy.Sanitize(m.HTML)
	text, err := e.md.ConvertString(safe)
	if err != nil || strings.TrimSpace(text) == "" {
		text = m.Subject
	}

	var errs []error
	for _, to := range m.To {
		msg, err := e.build(to, m, safe, text)
		if err == nil {
			err = e.deliver(ctx, msg)
		}
		if err != nil {
			errs = append(errs, &ErrSendFailed{Transport: "email", Recipient: to, Cause: err})
		}
	}
	return errors.Join(errs...)
}

func (e *Email) build(to string, m Mail, html, text string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.config.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(m.Subject)
	for k, v := range m.Params {
		msg.SetGenHeader(mail.Header("X-Diario-"+k), v)
	}
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}

func (e *Email) dial(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(e.config.Port),
		mail.WithTimeout(e.config.Timeout),
	}
	if e.config.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if e.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.config.Username),
			mail.WithPassword(e.config.Password),
		)
	}
	client, err := mail.NewClient(e.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
