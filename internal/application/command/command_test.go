package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glowup/glowup-core/internal/domain/notification"
	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/internal/domain/shared"
	"github.com/glowup/glowup-core/internal/infrastructure/persistence/memory"
	"github.com/glowup/glowup-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// recordingNotifier stores notifications in a memory repository.
type recordingNotifier struct {
	repo *memory.NotificationRepository
	fail bool
	seq  int
	mu   sync.Mutex
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{repo: memory.NewNotificationRepository()}
}

func (n *recordingNotifier) CreateNotification(ctx context.Context, userID, title, message string, kind notification.NotificationType) (*notification.Notification, error) {
	if n.fail {
		return nil, shared.ErrNotificationFailed
	}
	n.mu.Lock()
	n.seq++
	id := notification.NotificationID(fmt.Sprintf("%s-%d", kind, n.seq))
	n.mu.Unlock()

	rec, err := notification.NewNotification(notification.NewNotificationParams{
		ID: id, UserID: userID, Type: kind, Title: title, Message: message,
	})
	if err != nil {
		return nil, err
	}
	return rec, n.repo.Save(ctx, rec)
}

func (n *recordingNotifier) countKind(userID string, kind notification.NotificationType) int {
	list, _ := n.repo.ListByUser(context.Background(), userID, 0)
	c := 0
	for _, rec := range list {
		if rec.Type == kind {
			c++
		}
	}
	return c
}

// countingRepo counts calls and can inject failures.
type countingRepo struct {
	scoring.ProgressRepository

	mu        sync.Mutex
	gets      int
	sets      int
	setErr    error
	beforeSet func(ctx context.Context, userID string)
}

func (r *countingRepo) GetUserProgress(ctx context.Context, userID string) (scoring.UserProgress, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.ProgressRepository.GetUserProgress(ctx, userID)
}

func (r *countingRepo) SetUserProgress(ctx context.Context, userID string, u scoring.ProgressUpdate) error {
	r.mu.Lock()
	r.sets++
	hook := r.beforeSet
	r.beforeSet = nil
	setErr := r.setErr
	r.mu.Unlock()

	if hook != nil {
		hook(ctx, userID)
	}
	if setErr != nil {
		return setErr
	}
	return r.ProgressRepository.SetUserProgress(ctx, userID, u)
}

type fakeLeaderboard struct {
	mu     sync.Mutex
	points map[string]int
	err    error
}

func (l *fakeLeaderboard) SetPoints(_ context.Context, userID string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if l.points == nil {
		l.points = map[string]int{}
	}
	l.points[userID] = points
	return nil
}

func (l *fakeLeaderboard) Top(context.Context, int) ([]scoring.LeaderboardEntry, error) {
	return nil, nil
}

func (l *fakeLeaderboard) Position(context.Context, string) (int, error) {
	return 0, nil
}

type recordingMetrics struct {
	NopMetrics
	mu        sync.Mutex
	outcomes  map[string]int
	conflicts int
	levelUps  int
}

func (m *recordingMetrics) AddPointsCompleted(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *recordingMetrics) WriteConflict(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) LevelUp(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelUps++
}

type disabledFeatures struct{ off map[string]bool }

func (f disabledFeatures) IsEnabled(feature, _ string) bool { return !f.off[feature] }

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type fixture struct {
	tables      *scoring.Tables
	store       *memory.ProgressRepository
	repo        *countingRepo
	notifier    *recordingNotifier
	publisher   *recordingPublisher
	leaderboard *fakeLeaderboard
	metrics     *recordingMetrics
	handler     *AddPointsHandler

	mu         sync.Mutex
	celebrated []Celebration
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	f := &fixture{
		tables:      scoring.DefaultTables().WithOptions(scoring.WithInvariantHandler(scoring.PanicOnInvariant)),
		store:       memory.NewProgressRepository(),
		notifier:    newRecordingNotifier(),
		publisher:   &recordingPublisher{},
		leaderboard: &fakeLeaderboard{},
		metrics:     &recordingMetrics{},
	}
	f.repo = &countingRepo{ProgressRepository: f.store}
	f.handler = NewAddPointsHandler(AddPointsDeps{
		Tables:         f.tables,
		ProgressRepo:   f.repo,
		Notifier:       f.notifier,
		Leaderboard:    f.leaderboard,
		EventPublisher: f.publisher,
		Metrics:        f.metrics,
		Celebrate: func(_ context.Context, c Celebration) {
			f.mu.Lock()
			f.celebrated = append(f.celebrated, c)
			f.mu.Unlock()
		},
		Logger: quietLogger(),
	}, AddPointsHandlerConfig{MaxAttempts: maxAttempts, RetryDelay: time.Millisecond})
	return f
}

func (f *fixture) seed(t *testing.T, userID string, points, xp int) {
	t.Helper()
	p, err := scoring.NewUserProgress(userID, time.Now())
	require.NoError(t, err)
	p.Points = points
	p.ExperiencePoints = xp
	p.Level = f.tables.LevelFor(xp)
	require.NoError(t, f.store.CreateUserProgress(context.Background(), p))
}

func (f *fixture) stored(t *testing.T, userID string) scoring.UserProgress {
	t.Helper()
	p, err := f.store.GetUserProgress(context.Background(), userID)
	require.NoError(t, err)
	return p
}

var errDiskFull = errors.New("disk full")
