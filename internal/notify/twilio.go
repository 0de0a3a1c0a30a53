// Package notify: Twilio SMS delivery of user notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsSender is the slice of the Twilio client the notifier uses.
type smsSender interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Opts holds configuration for the Twilio notifier.
type Opts struct {
	// AccountSID and AuthToken override the TWILIO_ACCOUNT_SID /
	// TWILIO_AUTH_TOKEN environment variables read by the Twilio SDK.
	AccountSID string
	AuthToken  string
	// From is the sending phone number.
	From string
	// To is the user's phone number notifications are delivered to.
	To string
}

// Option configures Twilio notifier construction.
type Option func(*Opts)

// WithCredentials sets explicit Twilio API credentials.
func WithCredentials(accountSID, authToken string) Option {
	return func(o *Opts) {
		o.AccountSID = accountSID
		o.AuthToken = authToken
	}
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) {
		o.From = from
	}
}

// WithTo sets the recipient phone number.
func WithTo(to string) Option {
	return func(o *Opts) {
		o.To = to
	}
}

// TwilioNotifier delivers notifications as SMS messages via Twilio.
type TwilioNotifier struct {
	sms  smsSender
	from string
	to   string
}

// NewTwilioNotifier creates a Twilio-backed notifier. From and To numbers are
// required; credentials fall back to the SDK's environment variables.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewTwilioNotifier invoked", "from_set", cfg.From != "", "to_set", cfg.To != "")

	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("twilio notifier requires both from and to numbers")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{sms: client.Api, from: cfg.From, to: cfg.To}, nil
}

func (n *TwilioNotifier) Success(ctx context.Context, message string) {
	n.send(message)
}

func (n *TwilioNotifier) Failure(ctx context.Context, message string) {
	n.send(message)
}

// send delivers one SMS. Delivery failures are logged and swallowed; the
// notification sink is fire-and-forget by contract.
func (n *TwilioNotifier) send(message string) {
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(n.to)
	params.SetBody(message)

	if _, err := n.sms.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier send failed", "error", err, "to", n.to)
		return
	}
	slog.Debug("TwilioNotifier send succeeded", "to", n.to)
}
