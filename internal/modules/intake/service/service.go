// Package service orchestrates the intake pipeline: every inbound text or
// image runs through the deduplicating store and, once confirmed stored,
// through the keyword matcher. No alert is ever raised for a submission
// that was rejected or not confirmed stored.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	alertService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/alert/service"
	messageDomain "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/domain"
	messageService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/service"
	sharederrors "github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/textutil"
)

const (
	ocrContentPrefix    = "[IMAGE OCR]: "
	ocrTruncationMarker = "... [OCR TRUNCATED]"
	detailSnippetLength = 100
)

// TextExtractor converts an image file into raw text. Implementations
// enforce their own format and size limits and degrade to empty output on
// failure.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Service wires the store, the matcher and the OCR collaborator together
// and keeps per-process intake metrics.
type Service struct {
	messages         *messageService.Service
	alerts           *alertService.Service
	extractor        TextExtractor
	ocrMaxTextLength int

	mu      sync.Mutex
	metrics Metrics
}

// Metrics counts pipeline outcomes since process start.
type Metrics struct {
	Processed     int       `json:"processed"`
	Stored        int       `json:"stored"`
	Duplicates    int       `json:"duplicates"`
	Rejected      int       `json:"rejected"`
	Unavailable   int       `json:"unavailable"`
	Alerts        int       `json:"alerts"`
	LastProcessed time.Time `json:"last_processed"`
}

// Result is the outcome of one accepted pipeline run.
type Result struct {
	Message         *messageDomain.Message
	Duplicate       bool
	Alert           bool
	MatchedKeywords []string
	ExtractedChars  int
}

// New creates the orchestrator.
func New(messages *messageService.Service, alerts *alertService.Service, extractor TextExtractor, ocrMaxTextLength int) *Service {
	return &Service{
		messages:         messages,
		alerts:           alerts,
		extractor:        extractor,
		ocrMaxTextLength: ocrMaxTextLength,
	}
}

// ProcessText runs one inbound text message through the pipeline. Policy
// rejections and storage failures come back as the store's errors; no
// keyword matching happens on those paths.
func (s *Service) ProcessText(ctx context.Context, sourceKey, userKey, text string) (*Result, error) {
	stored, err := s.messages.Store(ctx, sourceKey, userKey, text)
	if err != nil {
		s.recordFailure(err)
		emitSecurityEvent(eventTypeFor(err), sourceKey, userKey, err.Error())
		return nil, err
	}

	result := &Result{Message: stored.Message, Duplicate: stored.Duplicate}
	result.MatchedKeywords = s.alerts.MatchedKeywords(stored.Message.Content)
	result.Alert = len(result.MatchedKeywords) > 0
	if result.Alert {
		emitSecurityEvent("FRAUD_PATTERN_DETECTED", sourceKey, userKey,
			"text: "+textutil.TruncateRunes(stored.Message.Content, detailSnippetLength))
	}

	s.record(result)
	return result, nil
}

// ProcessImage routes an image through the OCR collaborator first. An
// empty extraction stores nothing and is not an error; extracted text is
// bounded, stored with an OCR prefix, and matched as-is.
func (s *Service) ProcessImage(ctx context.Context, sourceKey, userKey, imagePath string) (*Result, error) {
	extracted, err := s.extractor.ExtractText(ctx, imagePath)
	if err != nil {
		slog.Error("text extraction failed", "source_key", sourceKey, "error", err)
		extracted = ""
	}
	extracted = strings.TrimSpace(extracted)
	if extracted == "" {
		return &Result{}, nil
	}

	// Bounding extracted text is the pipeline's job even though the
	// extractor enforces its own limit.
	if runes := []rune(extracted); len(runes) > s.ocrMaxTextLength {
		extracted = string(runes[:s.ocrMaxTextLength]) + ocrTruncationMarker
	}

	stored, err := s.messages.Store(ctx, sourceKey, userKey, ocrContentPrefix+extracted)
	if err != nil {
		s.recordFailure(err)
		emitSecurityEvent(eventTypeFor(err), sourceKey, userKey, err.Error())
		return nil, err
	}

	result := &Result{
		Message:        stored.Message,
		Duplicate:      stored.Duplicate,
		ExtractedChars: len([]rune(extracted)),
	}
	result.MatchedKeywords = s.alerts.MatchedKeywords(extracted)
	result.Alert = len(result.MatchedKeywords) > 0
	if result.Alert {
		emitSecurityEvent("FRAUD_PATTERN_DETECTED_OCR", sourceKey, userKey,
			"ocr: "+textutil.TruncateRunes(extracted, detailSnippetLength))
	}

	s.record(result)
	return result, nil
}

// MetricsSnapshot returns a copy of the counters.
func (s *Service) MetricsSnapshot() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Service) record(result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.Processed++
	s.metrics.LastProcessed = time.Now().UTC()
	if result.Duplicate {
		s.metrics.Duplicates++
	} else if result.Message != nil {
		s.metrics.Stored++
	}
	if result.Alert {
		s.metrics.Alerts++
	}
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.Processed++
	s.metrics.LastProcessed = time.Now().UTC()
	if errors.Is(err, sharederrors.ErrStorageUnavailable) {
		s.metrics.Unavailable++
	} else {
		s.metrics.Rejected++
	}
}

// emitSecurityEvent writes a structured security record. Emission never
// blocks and never fails the pipeline.
func emitSecurityEvent(eventType, sourceKey, userKey, details string) {
	slog.Warn("security event",
		"event_type", eventType,
		"source_key", sourceKey,
		"user_key", userKey,
		"details", details,
	)
}

func eventTypeFor(err error) string {
	switch {
	case errors.Is(err, sharederrors.ErrInvalidSourceKey),
		errors.Is(err, sharederrors.ErrUnauthorizedSource):
		return "UNAUTHORIZED_CHAT"
	case errors.Is(err, sharederrors.ErrRateLimited):
		return "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, sharederrors.ErrEmptyContent):
		return "EMPTY_CONTENT"
	case errors.Is(err, sharederrors.ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	default:
		return "PIPELINE_ERROR"
	}
}
