package notify

import (
	"context"
	"log/slog"
)

// LogChannels records outbound SMS, voice and email traffic on the log. It
// stands in for a telephony provider in environments without one and keeps
// the contact notification flow observable end to end.
type LogChannels struct {
	log *slog.Logger
}

func NewLogChannels(log *slog.Logger) *LogChannels {
	if log == nil {
		log = slog.Default()
	}
	return &LogChannels{log: log.With("component", "outbound")}
}

func (c *LogChannels) SendSMS(ctx context.Context, number, text string) error {
	c.log.Info("sms", "to", number, "text", text)
	return nil
}

func (c *LogChannels) PlaceCall(ctx context.Context, number, reason string) error {
	c.log.Info("call", "to", number, "reason", reason)
	return nil
}

func (c *LogChannels) SendEmail(ctx context.Context, email, subject, body string) error {
	c.log.Info("email", "to", email, "subject", subject)
	return nil
}
