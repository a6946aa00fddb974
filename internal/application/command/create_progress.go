package command

import (
	"context"
	"time"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PROGRESS COMMAND
// Creates the initial progress record when an account is created.
// ══════════════════════════════════════════════════════════════════════════════

// CreateProgressCommand contains the data to create a progress record.
type CreateProgressCommand struct {
	UserID string
}

// CreateProgressHandler handles the CreateProgressCommand.
type CreateProgressHandler struct {
	progressRepo   scoring.ProgressRepository
	eventPublisher shared.EventPublisher
	logger         *logger.Logger
	now            func() time.Time
}

// NewCreateProgressHandler creates a new CreateProgressHandler.
func NewCreateProgressHandler(progressRepo scoring.ProgressRepository, publisher shared.EventPublisher, log *logger.Logger) *CreateProgressHandler {
	if publisher == nil {
		publisher = shared.NoopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &CreateProgressHandler{
		progressRepo:   progressRepo,
		eventPublisher: publisher,
		logger:         log.With(logger.Component("create_progress")),
		now:            time.Now,
	}
}

// Handle creates the record. A second call for the same user fails with an
// error matching shared.ErrAlreadyExists.
func (h *CreateProgressHandler) Handle(ctx context.Context, cmd CreateProgressCommand) (scoring.UserProgress, error) {
	progress, err := scoring.NewUserProgress(cmd.UserID, h.now())
	if err != nil {
		return scoring.UserProgress{}, err
	}

	if err := h.progressRepo.CreateUserProgress(ctx, progress); err != nil {
		return scoring.UserProgress{}, err
	}

	if err := h.eventPublisher.Publish(shared.NewProgressCreatedEvent(progress.UserID)); err != nil {
		h.logger.Warn("failed to publish event", logger.UserID(progress.UserID), logger.Err(err))
	}

	h.logger.Info("progress created", logger.UserID(progress.UserID))
	return progress, nil
}
