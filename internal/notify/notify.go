// Package notify emails students about lifecycle events through SendGrid.
package notify

import (
	"context"
	"fmt"

	"github.com/nadmax/medrank/internal/apperr"
	"github.com/nadmax/medrank/internal/metrics"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender is satisfied by *sendgrid.Client.
type Sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type Notifier struct {
	sender    Sender
	from      *mail.Email
	directory student.Directory
	logger    zerolog.Logger
}

func NewSendGridNotifier(apiKey, fromName, fromAddress string, directory student.Directory, logger zerolog.Logger) *Notifier {
	return NewNotifier(sendgrid.NewSendClient(apiKey), fromName, fromAddress, directory, logger)
}

func NewNotifier(sender Sender, fromName, fromAddress string, directory student.Directory, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		from:      mail.NewEmail(fromName, fromAddress),
		directory: directory,
		logger:    logger,
	}
}

// TaskAssigned tells the assigned student about a new task. Students without
// an email address on file are skipped.
func (n *Notifier) TaskAssigned(ctx context.Context, ev *task.Event) error {
	s, err := n.directory.Get(ctx, ev.StudentID)
	if err != nil {
		if apperr.Is(err, apperr.ENOTFOUND) {
			metrics.RecordNotification("skipped")
			return nil
		}
		metrics.RecordNotification("failed")
		return fmt.Errorf("failed to look up student %s: %w", ev.StudentID, err)
	}
	if s.Email == "" {
		metrics.RecordNotification("skipped")
		n.logger.Debug().Str("student_id", s.ID).Msg("No email on file, skipping notification")
		return nil
	}

	subject := fmt.Sprintf("New patient task assigned: %s", ev.TaskTitle)
	body := fmt.Sprintf(
		"Hello %s,\n\nA new patient task \"%s\" has been assigned to you. Please accept or reject it from your task list.\n",
		s.Name, ev.TaskTitle,
	)

	email := mail.NewSingleEmail(n.from, subject, mail.NewEmail(s.Name, s.Email), body, body)
	response, err := n.sender.Send(email)
	if err != nil {
		metrics.RecordNotification("failed")
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		metrics.RecordNotification("failed")
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	metrics.RecordNotification("sent")
	n.logger.Info().
		Str("task_id", ev.TaskID).
		Str("student_id", s.ID).
		Int("status", response.StatusCode).
		Msg("Assignment email sent")
	return nil
}
