// Package memory implements the progress and notification stores in process
// memory. It is intended for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
)

// ProgressRepository is an in-memory scoring.ProgressRepository.
type ProgressRepository struct {
	mu    sync.RWMutex
	store map[string]scoring.UserProgress // userID -> progress
	now   func() time.Time
}

// NewProgressRepository returns an empty repository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{
		store: make(map[string]scoring.UserProgress),
		now:   time.Now,
	}
}

func (r *ProgressRepository) CreateUserProgress(_ context.Context, progress scoring.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store[progress.UserID]; exists {
		return shared.ErrProgressAlreadyExists
	}
	if progress.Version == 0 {
		progress.Version = 1
	}
	r.store[progress.UserID] = progress
	return nil
}

func (r *ProgressRepository) GetUserProgress(_ context.Context, userID string) (scoring.UserProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.store[userID]
	if !ok {
		return scoring.UserProgress{}, shared.ErrProgressNotFound
	}
	return p, nil
}

func (r *ProgressRepository) SetUserProgress(_ context.Context, userID string, update scoring.ProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.store[userID]
	if !ok {
		return shared.ErrProgressNotFound
	}
	if p.Version != update.ExpectedVersion {
		return shared.ErrVersionConflict
	}

	r.store[userID] = update.ApplyTo(p, r.now())
	return nil
}

// TopByPoints returns users ordered by points, ties broken by user ID.
func (r *ProgressRepository) TopByPoints(_ context.Context, limit int) ([]scoring.LeaderboardEntry, error) {
	r.mu.RLock()
	snapshot := make([]scoring.UserProgress, 0, len(r.store))
	for _, p := range r.store {
		snapshot = append(snapshot, p)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Points != snapshot[j].Points {
			return snapshot[i].Points > snapshot[j].Points
		}
		return snapshot[i].UserID < snapshot[j].UserID
	})

	if limit > 0 && len(snapshot) > limit {
		snapshot = snapshot[:limit]
	}

	out := make([]scoring.LeaderboardEntry, len(snapshot))
	for i, p := range snapshot {
		out[i] = scoring.LeaderboardEntry{Rank: i + 1, UserID: p.UserID, Points: p.Points}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository is an in-memory notification.Repository.
type NotificationRepository struct {
	mu    sync.RWMutex
	store map[string][]*notification.Notification // userID -> notifications, oldest first
}

// NewNotificationRepository returns an empty repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		store: make(map[string][]*notification.Notification),
	}
}

func (r *NotificationRepository) Save(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *n
	r.store[n.UserID] = append(r.store[n.UserID], &cp)
	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string, limit int) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.store[userID]
	out := make([]*notification.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Count returns the number of stored notifications of a user.
func (r *NotificationRepository) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store[userID])
}
