package notification

import "context"

// Repository stores notification records.
type Repository interface {
	// Save stores a new notification.
	Save(ctx context.Context, n *Notification) error

	// ListByUser returns the newest notifications of a user first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
}

// Notifier creates notification records on behalf of the scoring core.
type Notifier interface {
	CreateNotification(ctx context.Context, userID, title, message string, kind NotificationType) (*Notification, error)
}
