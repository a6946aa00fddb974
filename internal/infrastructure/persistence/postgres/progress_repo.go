package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements scoring.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `user_id, points, experience_points, level, current_streak_days,
	longest_streak_days, last_activity_date, version, created_at, updated_at`

// CreateUserProgress inserts the initial row.
func (r *ProgressRepository) CreateUserProgress(ctx context.Context, p scoring.UserProgress) error {
	if p.Version == 0 {
		p.Version = 1
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.UserID,
		p.Points,
		p.ExperiencePoints,
		p.Level,
		p.CurrentStreakDays,
		p.LongestStreakDays,
		nullableTime(p.LastActivityDate),
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProgressAlreadyExists
		}
		return storageError("CreateUserProgress", "failed to create user progress", err)
	}
	return nil
}

// GetUserProgress returns the stored row.
func (r *ProgressRepository) GetUserProgress(ctx context.Context, userID string) (scoring.UserProgress, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1`, userID)

	p, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return scoring.UserProgress{}, shared.ErrProgressNotFound
		}
		return scoring.UserProgress{}, storageError("GetUserProgress", "failed to load user progress", err)
	}
	return p, nil
}

// SetUserProgress applies the non-nil fields when the stored version still
// equals update.ExpectedVersion. The check and the write are one statement.
func (r *ProgressRepository) SetUserProgress(ctx context.Context, userID string, u scoring.ProgressUpdate) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE user_progress SET
			points              = COALESCE($2::integer, points),
			experience_points   = COALESCE($3::integer, experience_points),
			level               = COALESCE($4::integer, level),
			current_streak_days = COALESCE($5::integer, current_streak_days),
			longest_streak_days = COALESCE($6::integer, longest_streak_days),
			last_activity_date  = COALESCE($7::timestamptz, last_activity_date),
			version             = version + 1,
			updated_at          = $8
		WHERE user_id = $1 AND version = $9
	`,
		userID,
		u.Points,
		u.ExperiencePoints,
		u.Level,
		u.CurrentStreakDays,
		u.LongestStreakDays,
		u.LastActivityDate,
		time.Now().UTC(),
		u.ExpectedVersion,
	)
	if err != nil {
		return storageError("SetUserProgress", "failed to update user progress", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or someone else won.
	var version int64
	err = r.conn.QueryRow(ctx, `SELECT version FROM user_progress WHERE user_id = $1`, userID).Scan(&version)
	if IsNoRows(err) {
		return shared.ErrProgressNotFound
	}
	if err != nil {
		return storageError("SetUserProgress", "failed to check progress version", err)
	}
	return shared.ErrVersionConflict
}

// TopByPoints returns users ordered by points, ties broken by user ID.
func (r *ProgressRepository) TopByPoints(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, points
		FROM user_progress
		ORDER BY points DESC, user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageError("TopByPoints", "failed to query leaderboard", err)
	}
	defer rows.Close()

	var entries []scoring.LeaderboardEntry
	for rows.Next() {
		e := scoring.LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Points); err != nil {
			return nil, storageError("TopByPoints", "failed to scan leaderboard row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("TopByPoints", "failed to read leaderboard", err)
	}
	return entries, nil
}

func scanProgress(row pgx.Row) (scoring.UserProgress, error) {
	var (
		p            scoring.UserProgress
		lastActivity *time.Time
	)
	err := row.Scan(
		&p.UserID,
		&p.Points,
		&p.ExperiencePoints,
		&p.Level,
		&p.CurrentStreakDays,
		&p.LongestStreakDays,
		&lastActivity,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return scoring.UserProgress{}, err
	}
	if lastActivity != nil {
		p.LastActivityDate = lastActivity.UTC()
	}
	return p, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Save inserts a notification.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(n.ID), n.UserID, string(n.Type), n.Title, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return storageError("SaveNotification", "failed to save notification", err)
	}
	return nil
}

// ListByUser returns the newest notifications first. limit <= 0 means all.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError("ListNotifications", "failed to query notifications", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var (
			n        notification.Notification
			id, kind string
		)
		if err := rows.Scan(&id, &n.UserID, &kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, storageError("ListNotifications", "failed to scan notification", err)
		}
		n.ID = notification.NotificationID(id)
		n.Type = notification.NotificationType(kind)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ListNotifications", "failed to read notifications", err)
	}
	return out, nil
}
