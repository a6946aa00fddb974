package command

import (
	"context"
	"strings"
	"time"

	"github.com/glowup/glowup-core/config"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/pkg/logger"
	"github.com/glowup/glowup-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Advances the daily streak once per calendar day of activity.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	// UserID is the owner of the progress record.
	UserID string

	// Timestamp is when the activity occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.ErrInvalidUserID
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	// Success indicates the streak state is persisted (including no-op days).
	Success bool `json:"success"`

	// StreakUpdated is false when activity was already recorded for the day.
	StreakUpdated bool `json:"streak_updated"`

	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`

	// StreakBroken indicates a streak of two or more days was lost.
	StreakBroken   bool `json:"streak_broken"`
	PreviousStreak int  `json:"previous_streak,omitempty"`

	// Multiplier is the streak multiplier now in effect.
	Multiplier float64 `json:"multiplier"`

	RecordedAt time.Time `json:"recorded_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	tables         *scoring.Tables
	progressRepo   scoring.ProgressRepository
	eventPublisher shared.EventPublisher
	features       FeatureGate
	metrics        Metrics
	logger         *logger.Logger
	maxAttempts    int
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(
	tables *scoring.Tables,
	progressRepo scoring.ProgressRepository,
	eventPublisher shared.EventPublisher,
	features FeatureGate,
	metrics Metrics,
	log *logger.Logger,
	maxAttempts int,
) *RecordActivityHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logger.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultAddPointsHandlerConfig().MaxAttempts
	}

	return &RecordActivityHandler{
		tables:         tables,
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
		features:       features,
		metrics:        metrics,
		logger:         log.With(logger.Component("record_activity")),
		maxAttempts:    maxAttempts,
	}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return &RecordActivityResult{}, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	timestamp = timestamp.UTC()

	var change scoring.StreakChange

	retrier := retry.ConflictRetrier(h.maxAttempts, isWriteConflict,
		retry.WithOnRetry(func(int, error, time.Duration) {
			h.metrics.WriteConflict("record_activity")
		}),
	)

	err := retrier.Do(ctx, func(ctx context.Context) error {
		current, err := h.progressRepo.GetUserProgress(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		c := current.RecordActivity(timestamp)
		if c.Changed {
			if err := h.progressRepo.SetUserProgress(ctx, cmd.UserID, c.Update(current.Version)); err != nil {
				return err
			}
		}
		change = c
		return nil
	})
	if err != nil {
		switch {
		case isWriteConflict(err):
			err = shared.WrapError("progress", "RecordActivity", shared.ErrPersistence, "progress kept changing concurrently", err)
		case shared.IsNotFound(err), shared.IsPersistence(err):
		default:
			err = shared.WrapError("progress", "RecordActivity", shared.ErrPersistence, "streak update did not take effect", err)
		}
		h.logger.Error("record activity failed", logger.UserID(cmd.UserID), logger.Err(err))
		return &RecordActivityResult{}, err
	}

	h.metrics.StreakRecorded(change.Changed, change.Broken)

	result := &RecordActivityResult{
		Success:        true,
		StreakUpdated:  change.Changed,
		CurrentStreak:  change.Current,
		LongestStreak:  change.Longest,
		StreakBroken:   change.Broken,
		PreviousStreak: change.PreviousStreak,
		Multiplier:     h.tables.GetStreakMultiplier(change.Current),
		RecordedAt:     timestamp,
	}

	if !change.Changed {
		return result, nil
	}

	if change.Broken && h.enabled(config.FeatureStreakBrokenEvents, cmd.UserID) {
		broken := shared.NewDailyStreakBrokenEvent(cmd.UserID, change.PreviousStreak)
		broken.CorrelationID = cmd.CorrelationID
		h.publish(cmd.UserID, broken)
	}

	updated := shared.NewDailyStreakUpdatedEvent(cmd.UserID, change.Current, change.Longest)
	updated.CorrelationID = cmd.CorrelationID
	h.publish(cmd.UserID, updated)

	h.logger.Info("streak recorded",
		logger.UserID(cmd.UserID),
		logger.StreakDays(change.Current),
		logger.Bool("broken", change.Broken),
	)

	return result, nil
}

func (h *RecordActivityHandler) publish(userID string, event shared.Event) {
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.UserID(userID), logger.Err(err))
	}
}

func (h *RecordActivityHandler) enabled(feature, userID string) bool {
	if h.features == nil {
		return true
	}
	return h.features.IsEnabled(feature, userID)
}
