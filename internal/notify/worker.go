package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
)

// UserLookup resolves the recipient of order notifications.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Worker turns domain events into emails.
type Worker struct {
	sender Sender
	users  UserLookup
	logger *slog.Logger
}

// NewWorker creates a notification worker.
func NewWorker(sender Sender, users UserLookup, logger *slog.Logger) *Worker {
	return &Worker{sender: sender, users: users, logger: logger}
}

// Topics lists the topics the worker consumes.
func (w *Worker) Topics() []string {
	return []string{event.TopicUserApproved, event.TopicOrderStatusChanged}
}

// Subscribe registers the worker on an in-process publisher.
func (w *Worker) Subscribe(p *event.LocalPublisher) {
	for _, topic := range w.Topics() {
		p.Subscribe(topic, w.Handle)
	}
}

// Handle processes one event. Events the worker does not email about are
// acknowledged without side effects.
func (w *Worker) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case event.TopicUserApproved:
		return w.sellerApproved(ctx, evt)
	case event.TopicOrderStatusChanged:
		return w.orderShipped(ctx, evt)
	default:
		return nil
	}
}

func (w *Worker) sellerApproved(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.UserData
	if err := evt.DecodeData(&data); err != nil {
		return err
	}
	if data.Role != domain.RoleSeller {
		return nil
	}

	msg := Message{
		To:      data.Email,
		Subject: "Your seller account has been approved",
		Body: fmt.Sprintf("Hello %s,\n\nYour seller account is now approved. "+
			"You can start listing products right away.\n", data.Name),
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send approval email: %w", err)
	}
	w.logger.InfoContext(ctx, "seller approval email sent", slog.String("user_id", data.ID))
	return nil
}

func (w *Worker) orderShipped(ctx context.Context, evt *pkgkafka.Event) error {
	var data event.OrderStatusChangedData
	if err := evt.DecodeData(&data); err != nil {
		return err
	}
	if data.To != string(domain.OrderStatusShipped) {
		return nil
	}

	user, err := w.users.GetByID(ctx, data.UserID)
	if err != nil {
		return fmt.Errorf("load order customer %s: %w", data.UserID, err)
	}

	body := fmt.Sprintf("Hello %s,\n\nYour order %s has shipped.\n", user.Name, data.OrderID)
	if data.TrackingNumber != "" {
		body += fmt.Sprintf("Tracking number: %s\n", data.TrackingNumber)
	}

	if err := w.sender.Send(ctx, Message{To: user.Email, Subject: "Your order has shipped", Body: body}); err != nil {
		return fmt.Errorf("send shipping email: %w", err)
	}
	w.logger.InfoContext(ctx, "order shipped email sent", slog.String("order_id", data.OrderID))
	return nil
}
