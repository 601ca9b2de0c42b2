package notification

import (
	"Campus2Career/internal/config"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Store is the slice of the repository the dispatcher needs. Satisfied by
// NotificationRepository; tests use an in-memory fake.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	FindByRecipient(ctx context.Context, recipientID string, limit int64, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID, notificationID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// EmailSender is satisfied by config.EmailService.
type EmailSender interface {
	SendEmail(ctx context.Context, msg config.EmailMessage) config.SendResult
}

// DispatchResult reports what a dispatch actually did. Success tracks record
// persistence only; EmailSent is informational.
type DispatchResult struct {
	Success        bool
	NotificationID string
	EmailSent      bool
	Error          string
}

// NotificationService composes, persists and best-effort emails notifications.
type NotificationService struct {
	store Store
	email EmailSender
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo *NotificationRepository, emailService *config.EmailService) *NotificationService {
	return &NotificationService{store: repo, email: emailService}
}

// NewNotificationServiceWith wires explicit collaborators. Used by tests.
func NewNotificationServiceWith(store Store, email EmailSender) *NotificationService {
	return &NotificationService{store: store, email: email}
}

// Dispatch renders the template for typ, persists the in-app record, then
// attempts email delivery when an address is known. Persistence is the only
// step that can fail the dispatch; email errors are logged and swallowed.
// Dispatch never panics and never returns a Go error, so callers on the
// primary request path cannot be broken by it.
func (s *NotificationService) Dispatch(ctx context.Context, typ, recipientID, recipientEmail string, data map[string]string) DispatchResult {
	subject, body, ok := Render(typ, data)
	if !ok {
		log.Printf("[NOTIFY] unknown notification type %q for recipient %s, dropping", typ, recipientID)
		return DispatchResult{Success: false, Error: fmt.Sprintf("unknown notification type: %s", typ)}
	}

	n := &Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        typ,
		Subject:     subject,
		Content:     body,
		Data:        data,
		Read:        false,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		log.Printf("[NOTIFY] failed to persist %s notification for %s: %v", typ, recipientID, err)
		return DispatchResult{Success: false, Error: err.Error()}
	}

	if recipientEmail == "" {
		log.Printf("[NOTIFY] %s notification for %s delivered in-app only (no email address)", typ, recipientID)
		return DispatchResult{Success: true, NotificationID: n.ID}
	}

	sendResult := s.email.SendEmail(ctx, config.EmailMessage{
		To:      recipientEmail,
		Subject: subject,
		Text:    body,
		Tags:    []string{typ},
	})
	if !sendResult.Success {
		// In-app record already persisted, so the notification is not lost.
		log.Printf("[NOTIFY] email delivery failed for %s notification to %s: %s", typ, recipientEmail, sendResult.Error)
		return DispatchResult{Success: true, NotificationID: n.ID}
	}
	return DispatchResult{Success: true, NotificationID: n.ID, EmailSent: true}
}

// ListByRecipient fetches a user's notifications newest-first.
func (s *NotificationService) ListByRecipient(ctx context.Context, recipientID string, limit int64, unreadOnly bool) ([]*Notification, error) {
	return s.store.FindByRecipient(ctx, recipientID, limit, unreadOnly)
}

// MarkRead marks one of the user's own notifications read. A notification id
// belonging to someone else is a silent no-op.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	return s.store.MarkRead(ctx, recipientID, notificationID)
}

// MarkAllRead marks all of the user's notifications read, returning the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID)
}

// CountUnread returns the user's unread count.
func (s *NotificationService) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return s.store.CountUnread(ctx, recipientID)
}
