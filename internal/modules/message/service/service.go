package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/domain"
	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/repository"
	sharederrors "github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/ratelimit"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/textutil"
	"github.com/samber/lo"
)

const (
	maxUserKeyLength = 100
	storeTimeout     = 5 * time.Second
)

// Service is the deduplicating store. It applies the admission policy in
// order (authorization, rate limit, sanitization) and persists accepted
// messages exactly once per (source, fingerprint) pair.
type Service struct {
	repo           repository.Repository
	limiter        *ratelimit.Limiter
	allowedSources []string
	maxLength      int
}

// Result carries the stored (or previously stored) message. Duplicate
// marks the idempotent no-op path: the submission was accepted but nothing
// new was written.
type Result struct {
	Message   *domain.Message
	Duplicate bool
}

// New creates the store. An empty allowedSources list admits every
// syntactically valid source key.
func New(repo repository.Repository, limiter *ratelimit.Limiter, allowedSources []string, maxLength int) *Service {
	return &Service{
		repo:           repo,
		limiter:        limiter,
		allowedSources: allowedSources,
		maxLength:      maxLength,
	}
}

// Store runs the admission sequence and persists the message. Rejections
// surface as the sentinel errors of internal/shared/errors; a transient
// storage failure surfaces as ErrStorageUnavailable and must not be read
// as "no duplicate".
func (s *Service) Store(ctx context.Context, sourceKey, userKey, rawContent string) (*Result, error) {
	if !validSourceKey(sourceKey) {
		return nil, sharederrors.ErrInvalidSourceKey
	}
	if len(s.allowedSources) > 0 && !lo.Contains(s.allowedSources, sourceKey) {
		return nil, sharederrors.ErrUnauthorizedSource
	}
	if s.limiter.Limited(sourceKey) {
		return nil, sharederrors.ErrRateLimited
	}

	content := textutil.Sanitize(rawContent, s.maxLength)
	if content == "" {
		return nil, sharederrors.ErrEmptyContent
	}
	userKey = textutil.TruncateRunes(textutil.StripControl(userKey), maxUserKeyLength)

	msg := &domain.Message{
		SourceKey:          sourceKey,
		UserKey:            userKey,
		Content:            content,
		ContentFingerprint: textutil.Fingerprint(content),
		CreatedAt:          time.Now().UTC(),
	}

	opCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	inserted, err := s.repo.Insert(opCtx, msg)
	if err != nil {
		return nil, err
	}
	if !inserted {
		slog.Info("duplicate message detected, skipping storage", "source_key", sourceKey)
		return &Result{Message: msg, Duplicate: true}, nil
	}

	slog.Info("message stored", "source_key", sourceKey, "message_id", msg.ID)
	return &Result{Message: msg}, nil
}

// validSourceKey accepts Telegram-style chat identifiers: a signed integer
// rendered as a decimal string.
func validSourceKey(sourceKey string) bool {
	if sourceKey == "" {
		return false
	}
	_, err := strconv.ParseInt(sourceKey, 10, 64)
	return err == nil
}
