package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Dispatcher routes rendered alerts to the transports. Global alerts go to
// the operator mailbox and chat; group alerts go to the group's recipients
// by email only.
type Dispatcher struct {
	email    *Email
	telegram *Telegram
	mailTo   []string
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. email and telegram may be nil.
func NewDispatcher(email *Email, telegram *Telegram, mailTo []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{email: email, telegram: telegram, mailTo: mailTo, logger: logger}
}

// NotifyHits sends the global alert for a run with hits.
func (d *Dispatcher) NotifyHits(ctx context.Context, a Alert) error {
	r, err := RenderHits(a)
	if err != nil {
		return err
	}
	return d.broadcast(ctx, r)
}

// NotifyEmpty sends the global no-hit alert.
func (d *Dispatcher) NotifyEmpty(ctx context.Context, a Alert) error {
	r, err := RenderEmpty(a)
	if err != nil {
		return err
	}
	return d.broadcast(ctx, r)
}

// NotifyGroup emails a group-scoped alert to the group's recipients.
func (d *Dispatcher) NotifyGroup(ctx context.Context, g GroupAlert) error {
	if len(g.Recipients) == 0 {
		return ErrNoRecipients
	}
	r, err := RenderGroup(g)
	if err != nil {
		return err
	}
	if !d.email.Configured() {
		d.logger.Debug("notify: email not configured, group alert dropped", "group", g.GroupName)
		return nil
	}
	return d.email.Send(ctx, Mail{To: g.Recipients, Subject: r.Subject, HTML: r.HTML, Params: r.Params})
}

func (d *Dispatcher) broadcast(ctx context.Context, r Rendered) error {
	var errs []error
	if d.email.Configured() && len(d.mailTo) > 0 {
		if err := d.email.Send(ctx, Mail{To: d.mailTo, Subject: r.Subject, HTML: r.HTML, Params: r.Params}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.telegram.Send(ctx, r.Chat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
