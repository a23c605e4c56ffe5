// Package notify tells agents about new leads and bookings.
//
// Delivery is best effort: a failed or slow send is logged and counted, never
// surfaced to the visitor who submitted the form.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"agentlinker/internal/agents"
	"agentlinker/internal/bookings"
	"agentlinker/internal/leads"
	"agentlinker/internal/metrics"
)

const (
	KindLead    = "lead"
	KindBooking = "booking"
)

type Message struct {
	Kind    string
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of an email provider.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("notification has no recipient")
	}
	s.Logger.Info("Notification sent",
		slog.String("kind", msg.Kind),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject))
	return nil
}

// Notifier dispatches messages in the background with a per-send timeout.
type Notifier struct {
	sender  Sender
	logger  *slog.Logger
	from    string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(sender Sender, logger *slog.Logger, from string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		sender:  sender,
		logger:  logger,
		from:    from,
		timeout: timeout,
	}
}

// Dispatch sends msg without blocking the caller.
func (n *Notifier) Dispatch(msg Message) {
	if msg.From == "" {
		msg.From = n.from
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sender.Send(ctx, msg); err != nil {
			metrics.Notifications.WithLabelValues(msg.Kind, outcome(err)).Inc()
			n.logger.Warn("Failed to send notification",
				slog.String("kind", msg.Kind),
				slog.String("to", msg.To),
				slog.Any("error", err))
			return
		}
		metrics.Notifications.WithLabelValues(msg.Kind, "sent").Inc()
	}()
}

// Wait blocks until every dispatched message has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Drain is Wait bounded by ctx. It returns ctx.Err() if sends are still in
// flight when ctx is done.
func (n *Notifier) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcome(err error) string {
	if errors.Is(err, ErrBreakerOpen) {
		return "rejected"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "failed"
}

// LeadMessage builds the new-lead email for agent. listingTitle may be empty.
func LeadMessage(agent *agents.Agent, lead *leads.Lead, listingTitle string) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\nYou have a new lead from %s.\n\n", greetingName(agent), lead.Name)
	if listingTitle != "" {
		fmt.Fprintf(&body, "Listing: %s\n", listingTitle)
	}
	if lead.Email != "" {
		fmt.Fprintf(&body, "Email: %s\n", lead.Email)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&body, "Phone: %s\n", lead.Phone)
	}
	if lead.Message != "" {
		fmt.Fprintf(&body, "\n%s\n", lead.Message)
	}

	return Message{
		Kind:    KindLead,
		To:      agent.Email,
		Subject: fmt.Sprintf("New lead: %s", lead.Name),
		Body:    body.String(),
	}
}

// BookingMessage builds the showing-request email for agent.
func BookingMessage(agent *agents.Agent, booking *bookings.Booking) Message {
	when := booking.ScheduledAt.UTC().Format("Mon Jan 2, 2006 at 15:04 UTC")

	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n%s requested a showing on %s.\n\n", greetingName(agent), booking.Name, when)
	fmt.Fprintf(&body, "Confirmation code: %s\n", booking.ConfirmationCode)
	if booking.Email != "" {
		fmt.Fprintf(&body, "Email: %s\n", booking.Email)
	}
	if booking.Phone != "" {
		fmt.Fprintf(&body, "Phone: %s\n", booking.Phone)
	}
	if booking.Notes != "" {
		fmt.Fprintf(&body, "\n%s\n", booking.Notes)
	}

	return Message{
		Kind:    KindBooking,
		To:      agent.Email,
		Subject: fmt.Sprintf("Showing request from %s", booking.Name),
		Body:    body.String(),
	}
}

func greetingName(agent *agents.Agent) string {
	if agent.DisplayName != "" {
		return agent.DisplayName
	}
	return agent.Username
}
