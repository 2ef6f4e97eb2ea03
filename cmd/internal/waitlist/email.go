package waitlist

import (
	"context"
	"log/slog"
)

// ConfirmationMessage is sent after a successful signup.
type ConfirmationMessage struct {
	Email         string
	Position      int
	TotalWaiting  int
	EstimatedWait string
}

// InviteReadyMessage is sent when an entry is promoted to invited.
type InviteReadyMessage struct {
	Email     string
	Code      string
	ExpiresAt string
}

// EmailSender delivers waitlist notifications.
type EmailSender interface {
	SendWaitlistConfirmation(ctx context.Context, msg ConfirmationMessage) error
	SendInviteReady(ctx context.Context, msg InviteReadyMessage) error
}

// NoopEmailSender discards all notifications.
type NoopEmailSender struct{}

func (NoopEmailSender) SendWaitlistConfirmation(context.Context, ConfirmationMessage) error {
	return nil
}

func (NoopEmailSender) SendInviteReady(context.Context, InviteReadyMessage) error {
	return nil
}

// LogEmailSender records notifications to the structured log instead of
// delivering them. Useful in development and as the default until an SMTP
// transport is wired.
type LogEmailSender struct {
	log *slog.Logger
}

// NewLogEmailSender constructs a LogEmailSender.
func NewLogEmailSender(log *slog.Logger) *LogEmailSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmailSender{log: log}
}

func (s *LogEmailSender) SendWaitlistConfirmation(ctx context.Context, msg ConfirmationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("email.waitlist.confirmation",
		"to", msg.Email,
		"position", msg.Position,
		"total_waiting", msg.TotalWaiting,
		"estimated_wait", msg.EstimatedWait,
	)
	return nil
}

func (s *LogEmailSender) SendInviteReady(ctx context.Context, msg InviteReadyMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("email.invite.ready",
		"to", msg.Email,
		"code", msg.Code,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
