// Package notification contains the in-app notification record that the
// scoring core writes when something worth celebrating happens.
// Delivery (push, e-mail, UI toast) is handled by whoever reads the records.
package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID is the unique identifier of a notification.
type NotificationID string

// IsValid checks that the ID is not empty.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String returns the ID as a string.
func (id NotificationID) String() string {
	return string(id)
}

// NotificationType is the kind of a notification.
type NotificationType string

const (
	// NotificationTypeLevelUp - the user reached a new level.
	// "🎉 Subiu de nível! Agora você é Explorador 🧭"
	NotificationTypeLevelUp NotificationType = "level_up"

	// NotificationTypeRankUp - the user's points moved them into a higher rank tier.
	// "🥈 Você alcançou o rank Prata!"
	NotificationTypeRankUp NotificationType = "rank_up"

	// NotificationTypeStreakBroken - a streak of several days was lost.
	NotificationTypeStreakBroken NotificationType = "streak_broken"

	// NotificationTypeAchievement - generic achievement.
	NotificationTypeAchievement NotificationType = "achievement"
)

// IsValid checks that the type is known.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeLevelUp, NotificationTypeRankUp,
		NotificationTypeStreakBroken, NotificationTypeAchievement:
		return true
	}
	return false
}

// String returns the type as a string.
func (t NotificationType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrInvalidNotificationID   = errors.New("invalid notification id")
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrInvalidRecipientID      = errors.New("invalid recipient id")
	ErrEmptyMessage            = errors.New("notification message is empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        NotificationID   `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotificationParams holds the input of NewNotification.
type NewNotificationParams struct {
	ID      NotificationID
	UserID  string
	Type    NotificationType
	Title   string
	Message string
	Now     time.Time
}

// NewNotification creates a validated notification.
func NewNotification(params NewNotificationParams) (*Notification, error) {
	if !params.ID.IsValid() {
		return nil, ErrInvalidNotificationID
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidNotificationType
	}
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrInvalidRecipientID
	}
	if strings.TrimSpace(params.Message) == "" {
		return nil, ErrEmptyMessage
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	return &Notification{
		ID:        params.ID,
		UserID:    params.UserID,
		Type:      params.Type,
		Title:     params.Title,
		Message:   params.Message,
		CreatedAt: now.UTC(),
	}, nil
}

// String returns a short description for logs.
func (n *Notification) String() string {
	return fmt.Sprintf("Notification{ID: %s, Type: %s, User: %s}", n.ID, n.Type, n.UserID)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT
// ══════════════════════════════════════════════════════════════════════════════

// LevelUpContent returns the title and message shown after a level-up.
func LevelUpContent(level int, title, emoji string) (string, string) {
	return "🎉 Subiu de nível!",
		fmt.Sprintf("Parabéns! Você alcançou o nível %d: %s %s", level, title, emoji)
}

// RankUpContent returns the title and message shown after a rank promotion.
func RankUpContent(rankName, emoji string) (string, string) {
	return fmt.Sprintf("%s Novo rank!", emoji),
		fmt.Sprintf("Você alcançou o rank %s. Continue assim!", rankName)
}
