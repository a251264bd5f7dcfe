package telegram

import (
	"testing"

	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/config"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

func TestAuthorName(t *testing.T) {
	tests := []struct {
		name     string
		msg      *models.Message
		expected string
	}{
		{"username preferred", &models.Message{From: &models.User{Username: "alice", FirstName: "Alice"}}, "alice"},
		{"first name fallback", &models.Message{From: &models.User{FirstName: "Alice"}}, "Alice"},
		{"anonymous sender", &models.Message{From: &models.User{}}, "Unknown"},
		{"no sender", &models.Message{}, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authorName(tt.msg))
		})
	}
}

func TestMaxImageBytes(t *testing.T) {
	h := New(&config.Config{MaxImageSizeMB: 10}, nil)
	assert.Equal(t, int64(10*1024*1024), h.maxImageBytes())
}
