package repository

import (
	"context"

	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/domain"
)

// Repository defines message persistence. Insert is atomic with respect to
// the (source_key, content_fingerprint) uniqueness constraint: two
// concurrent submissions of identical content from the same source resolve
// to exactly one stored row, and the loser sees inserted == false rather
// than an error.
type Repository interface {
	WaitReady(ctx context.Context) error
	Insert(ctx context.Context, msg *domain.Message) (inserted bool, err error)
	Recent(ctx context.Context, limit int) ([]*domain.Message, error)
	Close() error
}
