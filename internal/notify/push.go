package notify

import (
	"context"
	"log/slog"
)

// TokenSource resolves a user's registered device token.
type TokenSource interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

// Pusher delivers in-app safety notifications over FCM. Without a configured
// FCM client it degrades to logging, so monitoring keeps working in
// development environments.
type Pusher struct {
	fcm    *FCM
	tokens TokenSource
	log    *slog.Logger
}

func NewPusher(fcm *FCM, tokens TokenSource, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.Default()
	}
	return &Pusher{fcm: fcm, tokens: tokens, log: log.With("component", "push")}
}

func (p *Pusher) NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	if p.fcm == nil || p.tokens == nil {
		p.log.Info("push (no fcm configured)", "user_id", userID, "title", title, "body", body)
		return nil
	}

	token, err := p.tokens.DeviceToken(ctx, userID)
	if err != nil {
		p.log.Warn("device token lookup failed", "user_id", userID, "error", err)
		return err
	}
	if token == "" {
		p.log.Info("push skipped, user has no device token", "user_id", userID, "title", title)
		return nil
	}
	return p.fcm.Send(ctx, token, title, body, data)
}
