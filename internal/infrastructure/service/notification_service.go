package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// IDGeneratorImpl implements IDGenerator.
type IDGeneratorImpl struct{}

func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	GenerateID() string
}

// NotificationService stores notification records and announces them on the
// event bus. It implements notification.Notifier.
type NotificationService struct {
	repo      notification.Repository
	publisher shared.EventPublisher
	ids       IDGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotificationService creates a NotificationService. publisher may be nil.
func NewNotificationService(repo notification.Repository, publisher shared.EventPublisher, logger *slog.Logger) *NotificationService {
	if publisher == nil {
		publisher = shared.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		ids:       NewIDGenerator(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithIDGenerator replaces the ID source. Used in tests.
func (s *NotificationService) WithIDGenerator(ids IDGenerator) *NotificationService {
	s.ids = ids
	return s
}

// CreateNotification builds, stores and announces a notification.
func (s *NotificationService) CreateNotification(ctx context.Context, userID, title, message string, kind notification.NotificationType) (*notification.Notification, error) {
	n, err := notification.NewNotification(notification.NewNotificationParams{
		ID:      notification.NotificationID(s.ids.GenerateID()),
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Now:     s.now(),
	})
	if err != nil {
		return nil, shared.WrapError("notification", "Create", shared.ErrInvalidInput, "invalid notification", err)
	}

	if err := s.repo.Save(ctx, n); err != nil {
		return nil, shared.WrapError("notification", "Create", shared.ErrNotificationFailed, "failed to store notification", err)
	}

	if err := s.publisher.Publish(shared.NewNotificationCreatedEvent(n.ID.String(), n.UserID, n.Type.String())); err != nil {
		s.logger.Warn("failed to publish notification event", "id", n.ID, "error", err)
	}

	s.logger.Debug("notification created", "id", n.ID, "user_id", userID, "type", kind)
	return n, nil
}

// ListForUser returns the newest notifications of a user.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
