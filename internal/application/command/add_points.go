// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glowup/glowup-core/config"
	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/pkg/logger"
	"github.com/glowup/glowup-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD POINTS COMMAND
// Awards points and XP for a catalog action, keeps the level in sync and
// celebrates level-ups.
// ══════════════════════════════════════════════════════════════════════════════

// AddPointsCommand contains the data to award an action.
type AddPointsCommand struct {
	// UserID is the owner of the progress record.
	UserID string

	// ActionKey names a ScoreAction in the catalog.
	ActionKey string

	// CurrentStreakDays is the caller's view of the streak, used for the multiplier.
	CurrentStreakDays int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AddPointsCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.ErrInvalidUserID
	}
	if strings.TrimSpace(c.ActionKey) == "" {
		return shared.NewDomainError("scoring", "AddPoints", shared.ErrInvalidInput, "action key is required")
	}
	if c.CurrentStreakDays < 0 {
		return shared.ErrNegativeStreak
	}
	return nil
}

// Celebration is the UI-facing payload of a level-up.
type Celebration struct {
	UserID   string            `json:"user_id"`
	OldLevel int               `json:"old_level"`
	Level    scoring.LevelInfo `json:"level"`
}

// CelebrationFunc is invoked once per level-up after the write succeeded.
type CelebrationFunc func(ctx context.Context, c Celebration)

// AddPointsResult contains the result of awarding an action.
type AddPointsResult struct {
	// Success is false when nothing was persisted.
	Success bool `json:"success"`

	PointsAdded int     `json:"points_added"`
	XPAdded     int     `json:"xp_added"`
	Multiplier  float64 `json:"multiplier"`

	NewPoints int  `json:"new_points"`
	NewXP     int  `json:"new_xp"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`

	// Rank after the update and whether a new tier was reached.
	Rank     scoring.RankTier `json:"rank"`
	RankedUp bool             `json:"ranked_up"`

	// Celebration is set when LeveledUp is true.
	Celebration *Celebration `json:"celebration,omitempty"`

	// Notification is the level-up record, if it could be created.
	Notification *notification.Notification `json:"notification,omitempty"`

	// Attempts is the number of read-modify-write cycles used.
	Attempts int `json:"attempts"`
}

// FeatureGate decides whether optional side effects run for a user.
type FeatureGate interface {
	IsEnabled(feature, userID string) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AddPointsHandler handles the AddPointsCommand.
type AddPointsHandler struct {
	tables         *scoring.Tables
	progressRepo   scoring.ProgressRepository
	notifier       notification.Notifier
	leaderboard    scoring.Leaderboard
	eventPublisher shared.EventPublisher
	features       FeatureGate
	metrics        Metrics
	celebrate      CelebrationFunc
	logger         *logger.Logger

	maxAttempts int
	retryDelay  time.Duration
}

// AddPointsHandlerConfig contains configuration for the handler.
type AddPointsHandlerConfig struct {
	// MaxAttempts bounds the read-modify-write cycles under contention.
	MaxAttempts int

	// RetryDelay is the initial backoff between cycles.
	RetryDelay time.Duration
}

// DefaultAddPointsHandlerConfig returns default configuration.
func DefaultAddPointsHandlerConfig() AddPointsHandlerConfig {
	return AddPointsHandlerConfig{
		MaxAttempts: 5,
		RetryDelay:  5 * time.Millisecond,
	}
}

// AddPointsDeps groups the handler collaborators. Only Tables, ProgressRepo
// and Notifier are required.
type AddPointsDeps struct {
	Tables         *scoring.Tables
	ProgressRepo   scoring.ProgressRepository
	Notifier       notification.Notifier
	Leaderboard    scoring.Leaderboard
	EventPublisher shared.EventPublisher
	Features       FeatureGate
	Metrics        Metrics
	Celebrate      CelebrationFunc
	Logger         *logger.Logger
}

// NewAddPointsHandler creates a new AddPointsHandler.
func NewAddPointsHandler(deps AddPointsDeps, cfg AddPointsHandlerConfig) *AddPointsHandler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultAddPointsHandlerConfig().MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultAddPointsHandlerConfig().RetryDelay
	}
	if deps.EventPublisher == nil {
		deps.EventPublisher = shared.NoopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	return &AddPointsHandler{
		tables:         deps.Tables,
		progressRepo:   deps.ProgressRepo,
		notifier:       deps.Notifier,
		leaderboard:    deps.Leaderboard,
		eventPublisher: deps.EventPublisher,
		features:       deps.Features,
		metrics:        deps.Metrics,
		celebrate:      deps.Celebrate,
		logger:         deps.Logger.With(logger.Component("add_points")),
		maxAttempts:    cfg.MaxAttempts,
		retryDelay:     cfg.RetryDelay,
	}
}

// Handle executes the add points command.
//
// On any failure the returned result has Success=false and the error tells
// why: validation and unknown actions match shared.ErrConfig or a validation
// kind, a missing record matches shared.ErrNotFound, and storage trouble
// matches shared.ErrPersistence or shared.ErrConcurrentModification.
func (h *AddPointsHandler) Handle(ctx context.Context, cmd AddPointsCommand) (*AddPointsResult, error) {
	start := time.Now()
	log := h.logger.With(logger.UserID(cmd.UserID), logger.ActionKey(cmd.ActionKey))

	if err := cmd.Validate(); err != nil {
		h.metrics.AddPointsCompleted(OutcomeInvalid, time.Since(start))
		return &AddPointsResult{}, err
	}

	// Unknown actions fail before any read or write.
	action, err := h.tables.LookupAction(cmd.ActionKey)
	if err != nil {
		h.metrics.AddPointsCompleted(OutcomeUnknownAction, time.Since(start))
		log.Warn("unknown score action")
		return &AddPointsResult{}, err
	}

	pointsAdded := h.tables.CalculatePointsWithStreak(action.BasePoints, cmd.CurrentStreakDays)
	multiplier := h.tables.GetStreakMultiplier(cmd.CurrentStreakDays)

	var (
		before   scoring.UserProgress
		newLevel scoring.LevelInfo
		attempts int
	)

	retrier := retry.ConflictRetrier(h.maxAttempts, isWriteConflict,
		retry.WithInitialDelay(h.retryDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			h.metrics.WriteConflict("add_points")
			log.Debug("progress changed concurrently, retrying", logger.Attempt(attempt), logger.Duration("delay", delay))
		}),
	)

	err = retrier.Do(ctx, func(ctx context.Context) error {
		attempts++

		current, err := h.progressRepo.GetUserProgress(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		newXP := current.ExperiencePoints + action.XPReward
		newPoints := current.Points + pointsAdded
		info := h.tables.CalculateLevel(newXP)

		err = h.progressRepo.SetUserProgress(ctx, cmd.UserID, scoring.ProgressUpdate{
			Points:           &newPoints,
			ExperiencePoints: &newXP,
			Level:            &info.Level,
			ExpectedVersion:  current.Version,
		})
		if err != nil {
			return err
		}

		before, newLevel = current, info
		return nil
	})
	if err != nil {
		outcome, wrapped := classifyWriteError(err)
		h.metrics.AddPointsCompleted(outcome, time.Since(start))
		log.Error("add points failed", logger.Err(wrapped), logger.Attempt(attempts))
		return &AddPointsResult{Attempts: attempts}, wrapped
	}

	newPoints := before.Points + pointsAdded
	oldRank := h.tables.GetRankByPoints(before.Points)
	newRank := h.tables.GetRankByPoints(newPoints)

	result := &AddPointsResult{
		Success:     true,
		PointsAdded: pointsAdded,
		XPAdded:     action.XPReward,
		Multiplier:  multiplier,
		NewPoints:   newPoints,
		NewXP:       before.ExperiencePoints + action.XPReward,
		NewLevel:    newLevel.Level,
		LeveledUp:   newLevel.Level > before.Level,
		Rank:        newRank,
		RankedUp:    newRank.MinPoints > oldRank.MinPoints,
		Attempts:    attempts,
	}

	h.metrics.PointsAwarded(action.Key, result.PointsAdded, result.XPAdded)
	awarded := shared.NewPointsAwardedEvent(cmd.UserID, action.Key, result.PointsAdded, result.XPAdded,
		result.NewPoints, result.NewXP, multiplier)
	awarded.CorrelationID = cmd.CorrelationID
	h.publish(log, awarded)

	if result.LeveledUp {
		h.onLevelUp(ctx, log, cmd, before.Level, newLevel, result)
	}
	if result.RankedUp {
		h.onRankUp(ctx, log, cmd.UserID, newRank)
	}
	h.mirrorLeaderboard(ctx, log, cmd.UserID, result.NewPoints)

	h.metrics.AddPointsCompleted(OutcomeSuccess, time.Since(start))
	log.Info("points awarded",
		logger.Points(result.PointsAdded),
		logger.XPAmount(result.XPAdded),
		logger.LevelField(result.NewLevel),
		logger.StreakDays(cmd.CurrentStreakDays),
		logger.Latency(time.Since(start)),
	)

	return result, nil
}

// onLevelUp runs exactly once per successful write that crossed a level.
func (h *AddPointsHandler) onLevelUp(ctx context.Context, log *logger.Logger, cmd AddPointsCommand, oldLevel int, info scoring.LevelInfo, result *AddPointsResult) {
	h.metrics.LevelUp(info.Level)

	celebration := &Celebration{UserID: cmd.UserID, OldLevel: oldLevel, Level: info}
	result.Celebration = celebration

	title, message := notification.LevelUpContent(info.Level, info.Title, info.Emoji)
	n, err := h.notifier.CreateNotification(ctx, cmd.UserID, title, message, notification.NotificationTypeLevelUp)
	if err != nil {
		log.Warn("failed to create level-up notification", logger.Err(err))
	} else {
		result.Notification = n
	}

	levelUp := shared.NewLevelUpEvent(cmd.UserID, oldLevel, info.Level, info.Title, info.Emoji)
	levelUp.CorrelationID = cmd.CorrelationID
	h.publish(log, levelUp)

	if h.celebrate != nil {
		h.celebrate(ctx, *celebration)
	}
}

func (h *AddPointsHandler) onRankUp(ctx context.Context, log *logger.Logger, userID string, rank scoring.RankTier) {
	if !h.enabled(config.FeatureNotifyRankUp, userID) {
		return
	}
	title, message := notification.RankUpContent(rank.Name, rank.Emoji)
	if _, err := h.notifier.CreateNotification(ctx, userID, title, message, notification.NotificationTypeRankUp); err != nil {
		log.Warn("failed to create rank-up notification", logger.Err(err))
	}
}

func (h *AddPointsHandler) mirrorLeaderboard(ctx context.Context, log *logger.Logger, userID string, points int) {
	if h.leaderboard == nil || !h.enabled(config.FeatureLeaderboardMirror, userID) {
		return
	}
	if err := h.leaderboard.SetPoints(ctx, userID, points); err != nil {
		log.Warn("failed to update leaderboard cache", logger.Err(err))
	}
}

func (h *AddPointsHandler) publish(log *logger.Logger, event shared.Event) {
	if err := h.eventPublisher.Publish(event); err != nil {
		log.Warn("failed to publish event", logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}

func (h *AddPointsHandler) enabled(feature, userID string) bool {
	if h.features == nil {
		return true
	}
	return h.features.IsEnabled(feature, userID)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

func isWriteConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrentModification)
}

// classifyWriteError maps a repository error to a metrics outcome and makes
// sure storage failures carry the persistence kind.
func classifyWriteError(err error) (string, error) {
	switch {
	case shared.IsNotFound(err):
		return OutcomeNotFound, err
	case isWriteConflict(err):
		return OutcomeConflict, shared.WrapError("scoring", "AddPoints", shared.ErrPersistence,
			"progress kept changing concurrently", err)
	case shared.IsPersistence(err):
		return OutcomePersistence, err
	default:
		return OutcomePersistence, shared.WrapError("scoring", "AddPoints", shared.ErrPersistence,
			"progress update did not take effect", err)
	}
}
