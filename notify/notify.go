// CLAUDE:SUMMARY Outbound alerts: SMTP email and Telegram transports, alert rendering, and the dispatcher used by the monitor.
// Package notify delivers monitoring alerts.
//
// Transports are optional: an unconfigured Email or Telegram silently does
// nothing, so a deployment can run with either, both or neither.
package notify

import (
	"errors"
	"fmt"
)

// Alert describes the outcome of one source in one run.
type Alert struct {
	Source       string
	EditionLabel string
	URL          string
	Hits         []string
	Snippets     []string
}

// GroupAlert is an Alert scoped to one subscriber group. Hits holds only the
// hits shared with the group's terms.
type GroupAlert struct {
	Alert
	GroupName  string
	GroupTerms []string
	Recipients []string
}

// ErrSendFailed is returned when a message could not be delivered.
type ErrSendFailed struct {
	Transport string
	Recipient string
	Cause     error
}

func (e *ErrSendFailed) Error() string {
	return fmt.Sprintf("notify: %s send to %s failed: %v", e.Transport, e.Recipient, e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }

// ErrNoRecipients is returned by Email.Send when the mail has no recipient.
var ErrNoRecipients = errors.New("notify: no recipients")
