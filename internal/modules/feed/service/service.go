package service

import (
	"context"
	"fmt"
	"time"

	messageRepo "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/repository"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/textutil"
	"github.com/gorilla/feeds"
	"github.com/samber/oops"
)

const defaultItemLimit = 50

// Service renders the recent audit trail as an RSS feed so reviewers can
// follow accepted messages without database access.
type Service struct {
	repo messageRepo.Repository
}

// New creates a new feed service.
func New(repo messageRepo.Repository) *Service {
	return &Service{repo: repo}
}

// GenerateAuditFeed builds an RSS feed of the most recent stored messages,
// newest first.
func (s *Service) GenerateAuditFeed(ctx context.Context, baseURL string) (*feeds.Feed, error) {
	messages, err := s.repo.Recent(ctx, defaultItemLimit)
	if err != nil {
		return nil, oops.With("context", "failed to load recent messages").Wrap(err)
	}

	feed := &feeds.Feed{
		Title:       "Fraud Monitor - Audit Trail",
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/feed/audit", baseURL)},
		Description: "Recent messages accepted by the fraud monitor intake pipeline",
		Created:     time.Now().UTC(),
	}

	for _, msg := range messages {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       textutil.TruncateRunes(msg.Content, 100),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/feed/audit#%d", baseURL, msg.ID)},
			Description: msg.Content,
			Author:      &feeds.Author{Name: msg.UserKey},
			Created:     msg.CreatedAt,
			Id:          fmt.Sprintf("%s-%s", msg.SourceKey, msg.ContentFingerprint),
		})
	}

	return feed, nil
}
