package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("BRT", -3*3600))

	n, err := NewNotification(NewNotificationParams{
		ID:      "n-1",
		UserID:  "user-1",
		Type:    NotificationTypeLevelUp,
		Title:   "t",
		Message: "m",
		Now:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, NotificationID("n-1"), n.ID)
	assert.False(t, n.Read)
	assert.Equal(t, time.UTC, n.CreatedAt.Location())
	assert.True(t, n.CreatedAt.Equal(now))
}

func TestNewNotification_Validation(t *testing.T) {
	valid := NewNotificationParams{ID: "n", UserID: "u", Type: NotificationTypeRankUp, Message: "m"}

	tests := []struct {
		name   string
		mutate func(*NewNotificationParams)
		want   error
	}{
		{"empty id", func(p *NewNotificationParams) { p.ID = "" }, ErrInvalidNotificationID},
		{"unknown type", func(p *NewNotificationParams) { p.Type = "spam" }, ErrInvalidNotificationType},
		{"blank user", func(p *NewNotificationParams) { p.UserID = " " }, ErrInvalidRecipientID},
		{"empty message", func(p *NewNotificationParams) { p.Message = "" }, ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewNotification(p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLevelUpContent(t *testing.T) {
	title, msg := LevelUpContent(2, "Aprendiz", "📘")
	assert.NotEmpty(t, title)
	assert.Contains(t, msg, "nível 2")
	assert.Contains(t, msg, "Aprendiz")
}
