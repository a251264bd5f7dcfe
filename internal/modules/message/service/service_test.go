package service

import (
	"context"
	"testing"
	"time"

	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/domain"
	sharederrors "github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo implements repository.Repository in memory, keyed the same way
// the real schema is: (source_key, content_fingerprint).
type fakeRepo struct {
	rows    map[string]*domain.Message
	nextID  int64
	failErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*domain.Message)}
}

func (f *fakeRepo) WaitReady(ctx context.Context) error { return f.failErr }

func (f *fakeRepo) Insert(ctx context.Context, msg *domain.Message) (bool, error) {
	if f.failErr != nil {
		return false, f.failErr
	}
	key := msg.SourceKey + "|" + msg.ContentFingerprint
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.nextID++
	msg.ID = f.nextID
	stored := *msg
	f.rows[key] = &stored
	return true, nil
}

func (f *fakeRepo) Recent(ctx context.Context, limit int) ([]*domain.Message, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	var out []*domain.Message
	for _, m := range f.rows {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) Close() error { return nil }

func newTestService(repo *fakeRepo, allowed []string, limit int) *Service {
	return New(repo, ratelimit.New(limit, 5*time.Minute), allowed, 5000)
}

func TestStoreAcceptsValidMessage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, 30)

	result, err := svc.Store(context.Background(), "123456", "alice", "hello there")
	require.NoError(t, err)
	require.NotNil(t, result.Message)

	assert.False(t, result.Duplicate)
	assert.Equal(t, "123456", result.Message.SourceKey)
	assert.Equal(t, "hello there", result.Message.Content)
	assert.Len(t, result.Message.ContentFingerprint, 64)
	assert.False(t, result.Message.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, result.Message.CreatedAt.Location())
	assert.Len(t, repo.rows, 1)
}

func TestStoreRejectsMalformedSourceKey(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil, 30)

	for _, key := range []string{"", "abc", "12x", "12.5"} {
		_, err := svc.Store(context.Background(), key, "alice", "hello")
		assert.ErrorIs(t, err, sharederrors.ErrInvalidSourceKey, "key %q", key)
	}

	// Negative group chat identifiers are valid.
	_, err := svc.Store(context.Background(), "-100200300", "alice", "hello")
	assert.NoError(t, err)
}

func TestStoreEnforcesAllowList(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, []string{"111", "222"}, 30)

	_, err := svc.Store(context.Background(), "333", "alice", "hello")
	assert.ErrorIs(t, err, sharederrors.ErrUnauthorizedSource)
	assert.Empty(t, repo.rows, "rejected message must not be stored")

	_, err = svc.Store(context.Background(), "111", "alice", "hello")
	assert.NoError(t, err)
}

func TestStoreRateLimits(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil, 1)

	_, err := svc.Store(context.Background(), "123", "alice", "first message")
	require.NoError(t, err)

	_, err = svc.Store(context.Background(), "123", "alice", "second message")
	assert.ErrorIs(t, err, sharederrors.ErrRateLimited)
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, 30)

	for _, content := range []string{"", "\x00\x01\x02"} {
		_, err := svc.Store(context.Background(), "123", "alice", content)
		assert.ErrorIs(t, err, sharederrors.ErrEmptyContent)
	}
	assert.Empty(t, repo.rows)
}

func TestStoreDuplicateIsIdempotentNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, 30)

	first, err := svc.Store(context.Background(), "123", "alice", "same content")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Store(context.Background(), "123", "alice", "same content")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Len(t, repo.rows, 1, "duplicate submission must not add a row")
}

func TestStoreSameContentDifferentSources(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, 30)

	_, err := svc.Store(context.Background(), "111", "alice", "shared content")
	require.NoError(t, err)
	_, err = svc.Store(context.Background(), "222", "bob", "shared content")
	require.NoError(t, err)

	assert.Len(t, repo.rows, 2, "uniqueness is scoped per source")
}

func TestStoreSurfacesStorageUnavailable(t *testing.T) {
	repo := newFakeRepo()
	repo.failErr = sharederrors.ErrStorageUnavailable
	svc := newTestService(repo, nil, 30)

	_, err := svc.Store(context.Background(), "123", "alice", "hello")
	assert.ErrorIs(t, err, sharederrors.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, sharederrors.ErrEmptyContent)
}

func TestStoreTruncatesUserKey(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, 30)

	longUser := ""
	for i := 0; i < 150; i++ {
		longUser += "u"
	}

	result, err := svc.Store(context.Background(), "123", longUser, "hello")
	require.NoError(t, err)
	assert.Len(t, []rune(result.Message.UserKey), 100)
}
