// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progress events
	EventProgressCreated    EventType = "progress.created"
	EventPointsAwarded      EventType = "progress.points_awarded"
	EventLevelUp            EventType = "progress.level_up"
	EventDailyStreakUpdated EventType = "progress.streak_updated"
	EventDailyStreakBroken  EventType = "progress.streak_broken"

	// Notification events
	EventNotificationCreated EventType = "notification.created"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressCreatedEvent is emitted when a user's progress record is created.
type ProgressCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e ProgressCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
	}
}

// NewProgressCreatedEvent creates a new ProgressCreatedEvent.
func NewProgressCreatedEvent(userID string) ProgressCreatedEvent {
	return ProgressCreatedEvent{
		BaseEvent: NewBaseEvent(EventProgressCreated, userID),
		UserID:    userID,
	}
}

// PointsAwardedEvent is emitted after points and XP were persisted for an action.
type PointsAwardedEvent struct {
	BaseEvent
	UserID      string  `json:"user_id"`
	ActionKey   string  `json:"action_key"`
	PointsAdded int     `json:"points_added"`
	XPAdded     int     `json:"xp_added"`
	NewPoints   int     `json:"new_points"`
	NewXP       int     `json:"new_xp"`
	Multiplier  float64 `json:"multiplier"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"action_key":   e.ActionKey,
		"points_added": e.PointsAdded,
		"xp_added":     e.XPAdded,
		"new_points":   e.NewPoints,
		"new_xp":       e.NewXP,
		"multiplier":   e.Multiplier,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID, actionKey string, pointsAdded, xpAdded, newPoints, newXP int, multiplier float64) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID),
		UserID:      userID,
		ActionKey:   actionKey,
		PointsAdded: pointsAdded,
		XPAdded:     xpAdded,
		NewPoints:   newPoints,
		NewXP:       newXP,
		Multiplier:  multiplier,
	}
}

// LevelUpEvent is emitted when a user reaches a higher level.
// UI layers subscribe to it to play the celebration.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
	Emoji    string `json:"emoji"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"title":     e.Title,
		"emoji":     e.Emoji,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, title, emoji string) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
		Emoji:     emoji,
	}
}

// DailyStreakUpdatedEvent is emitted when the daily streak advances or restarts.
type DailyStreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e DailyStreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewDailyStreakUpdatedEvent creates a new DailyStreakUpdatedEvent.
func NewDailyStreakUpdatedEvent(userID string, current, longest int) DailyStreakUpdatedEvent {
	return DailyStreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventDailyStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// DailyStreakBrokenEvent is emitted when a gap in activity resets the streak.
type DailyStreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
}

// Payload implements Event interface.
func (e DailyStreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
	}
}

// NewDailyStreakBrokenEvent creates a new DailyStreakBrokenEvent.
func NewDailyStreakBrokenEvent(userID string, previous int) DailyStreakBrokenEvent {
	return DailyStreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventDailyStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previous,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationCreatedEvent is emitted after a notification record was stored.
type NotificationCreatedEvent struct {
	BaseEvent
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
}

// Payload implements Event interface.
func (e NotificationCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"user_id":         e.UserID,
		"kind":            e.Kind,
	}
}

// NewNotificationCreatedEvent creates a new NotificationCreatedEvent.
func NewNotificationCreatedEvent(notificationID, userID, kind string) NotificationCreatedEvent {
	return NotificationCreatedEvent{
		BaseEvent:      NewBaseEvent(EventNotificationCreated, userID),
		NotificationID: notificationID,
		UserID:         userID,
		Kind:           kind,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
