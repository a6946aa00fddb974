package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ─── Progress ───────────────────────────────────────────────────────────────

// ProgressRepository implements scoring.ProgressRepository.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// CreateUserProgress inserts the initial row.
func (r *ProgressRepository) CreateUserProgress(ctx context.Context, p scoring.UserProgress) error {
	if p.Version == 0 {
		p.Version = 1
	}

	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, points, experience_points, level, current_streak_days,
			longest_streak_days, last_activity_date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.UserID, p.Points, p.ExperiencePoints, p.Level, p.CurrentStreakDays,
		p.LongestStreakDays, nullableTime(p.LastActivityDate), p.Version,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrProgressAlreadyExists
		}
		return storageError("CreateUserProgress", "failed to create user progress", err)
	}
	return nil
}

// GetUserProgress returns the stored row.
func (r *ProgressRepository) GetUserProgress(ctx context.Context, userID string) (scoring.UserProgress, error) {
	var (
		p                    scoring.UserProgress
		lastActivity         sql.NullString
		createdAt, updatedAt string
	)
	err := r.db.db.QueryRowContext(ctx, `
		SELECT user_id, points, experience_points, level, current_streak_days,
			longest_streak_days, last_activity_date, version, created_at, updated_at
		FROM user_progress WHERE user_id = ?
	`, userID).Scan(
		&p.UserID, &p.Points, &p.ExperiencePoints, &p.Level, &p.CurrentStreakDays,
		&p.LongestStreakDays, &lastActivity, &p.Version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.UserProgress{}, shared.ErrProgressNotFound
	}
	if err != nil {
		return scoring.UserProgress{}, storageError("GetUserProgress", "failed to load user progress", err)
	}

	if lastActivity.Valid {
		p.LastActivityDate = parseTime(lastActivity.String)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// SetUserProgress applies the non-nil fields when the stored version still
// equals update.ExpectedVersion.
func (r *ProgressRepository) SetUserProgress(ctx context.Context, userID string, u scoring.ProgressUpdate) error {
	var lastActivity any
	if u.LastActivityDate != nil {
		lastActivity = formatTime(*u.LastActivityDate)
	}

	res, err := r.db.db.ExecContext(ctx, `
		UPDATE user_progress SET
			points              = COALESCE(?, points),
			experience_points   = COALESCE(?, experience_points),
			level               = COALESCE(?, level),
			current_streak_days = COALESCE(?, current_streak_days),
			longest_streak_days = COALESCE(?, longest_streak_days),
			last_activity_date  = COALESCE(?, last_activity_date),
			version             = version + 1,
			updated_at          = ?
		WHERE user_id = ? AND version = ?
	`,
		nullableInt(u.Points), nullableInt(u.ExperiencePoints), nullableInt(u.Level),
		nullableInt(u.CurrentStreakDays), nullableInt(u.LongestStreakDays), lastActivity,
		formatTime(time.Now()), userID, u.ExpectedVersion,
	)
	if err != nil {
		return storageError("SetUserProgress", "failed to update user progress", err)
	}
	updated, err := singleRowAffected(res)
	if err != nil {
		return storageError("SetUserProgress", "failed to read affected rows", err)
	}
	if updated {
		return nil
	}

	var version int64
	err = r.db.db.QueryRowContext(ctx, `SELECT version FROM user_progress WHERE user_id = ?`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.ErrProgressNotFound
	}
	if err != nil {
		return storageError("SetUserProgress", "failed to check progress version", err)
	}
	return shared.ErrVersionConflict
}

// TopByPoints returns users ordered by points, ties broken by user ID.
func (r *ProgressRepository) TopByPoints(ctx context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT user_id, points FROM user_progress
		ORDER BY points DESC, user_id
		LIMIT ?
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
	return entries, rows.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save inserts a notification.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(n.ID), n.UserID, string(n.Type), n.Title, n.Message, read, formatTime(n.CreatedAt))
	if err != nil {
		return storageError("SaveNotification", "failed to save notification", err)
	}
	return nil
}

// ListByUser returns the newest notifications first. limit <= 0 means all.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, storageError("ListNotifications", "failed to query notifications", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var (
			n                   notification.Notification
			id, kind, createdAt string
			read                int
		)
		if err := rows.Scan(&id, &n.UserID, &kind, &n.Title, &n.Message, &read, &createdAt); err != nil {
			return nil, storageError("ListNotifications", "failed to scan notification", err)
		}
		n.ID = notification.NotificationID(id)
		n.Type = notification.NotificationType(kind)
		n.Read = read == 1
		n.CreatedAt = parseTime(createdAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
}

// singleRowAffected reports whether a versioned UPDATE matched its row.
func singleRowAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
