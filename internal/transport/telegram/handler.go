package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	intakeService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/intake/service"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/config"
	sharederrors "github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/samber/oops"
)

const tempDirName = "fraud-monitor-images"

// Handler routes Telegram updates into the intake pipeline and answers
// the chat with the pipeline's verdict.
type Handler struct {
	cfg    *config.Config
	intake *intakeService.Service
}

// New creates a new Telegram handler
func New(cfg *config.Config, intake *intakeService.Service) *Handler {
	return &Handler{
		cfg:    cfg,
		intake: intake,
	}
}

// HandleUpdate processes incoming updates
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	sourceKey := fmt.Sprintf("%d", msg.Chat.ID)
	userKey := authorName(msg)

	switch {
	case msg.Text != "":
		h.handleText(ctx, b, msg, sourceKey, userKey)
	case len(msg.Photo) > 0:
		h.handlePhoto(ctx, b, msg, sourceKey, userKey)
	case msg.Document != nil:
		if strings.HasPrefix(msg.Document.MimeType, "image/") {
			h.handleImageDocument(ctx, b, msg, sourceKey, userKey)
		} else {
			slog.Info("non-image document received, ignoring", "source_key", sourceKey, "user_key", userKey)
		}
	}
}

func (h *Handler) handleText(ctx context.Context, b *bot.Bot, msg *models.Message, sourceKey, userKey string) {
	slog.Info("processing text message", "source_key", sourceKey, "user_key", userKey)

	result, err := h.intake.ProcessText(ctx, sourceKey, userKey, msg.Text)
	if err != nil {
		h.replyForError(ctx, b, msg.Chat.ID, err)
		return
	}

	if result.Alert {
		h.reply(ctx, b, msg.Chat.ID, "Potential fraud detected! Please be careful.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, b *bot.Bot, msg *models.Message, sourceKey, userKey string) {
	// Telegram sends multiple resolutions; the last is the largest.
	photo := msg.Photo[len(msg.Photo)-1]
	if int64(photo.FileSize) > h.maxImageBytes() {
		slog.Warn("security event", "event_type", "OVERSIZED_IMAGE", "source_key", sourceKey, "user_key", userKey, "details", fmt.Sprintf("size: %d bytes", photo.FileSize))
		h.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Image too large. Maximum size: %dMB", h.cfg.MaxImageSizeMB))
		return
	}

	h.processImageFile(ctx, b, msg, sourceKey, userKey, photo.FileID)
}

func (h *Handler) handleImageDocument(ctx context.Context, b *bot.Bot, msg *models.Message, sourceKey, userKey string) {
	doc := msg.Document
	if doc.FileSize > h.maxImageBytes() {
		slog.Warn("security event", "event_type", "OVERSIZED_DOCUMENT", "source_key", sourceKey, "user_key", userKey, "details", fmt.Sprintf("size: %d bytes", doc.FileSize))
		h.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Document too large. Maximum size: %dMB", h.cfg.MaxImageSizeMB))
		return
	}

	h.processImageFile(ctx, b, msg, sourceKey, userKey, doc.FileID)
}

func (h *Handler) processImageFile(ctx context.Context, b *bot.Bot, msg *models.Message, sourceKey, userKey, fileID string) {
	slog.Info("processing image", "source_key", sourceKey, "user_key", userKey)

	path, err := h.downloadFile(ctx, b, fileID, sourceKey)
	if err != nil {
		slog.Error("failed to download image", "source_key", sourceKey, "error", err)
		h.reply(ctx, b, msg.Chat.ID, "Failed to process image. Please try again.")
		return
	}
	defer os.Remove(path)

	result, err := h.intake.ProcessImage(ctx, sourceKey, userKey, path)
	if err != nil {
		h.replyForError(ctx, b, msg.Chat.ID, err)
		return
	}

	if result.ExtractedChars == 0 {
		h.reply(ctx, b, msg.Chat.ID, "Image processed, but no text was found.")
		return
	}

	h.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Image processed! Extracted %d characters of text.", result.ExtractedChars))
	if result.Alert {
		h.reply(ctx, b, msg.Chat.ID, "Potential fraud detected in image! Please be careful.")
	}
}

// downloadFile fetches a Telegram file into a private temp path derived
// from the file and source identifiers.
func (h *Handler) downloadFile(ctx context.Context, b *bot.Bot, fileID, sourceKey string) (string, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", oops.With("file_id", fileID, "context", "failed to resolve file").Wrap(err)
	}

	tempDir := filepath.Join(os.TempDir(), tempDirName)
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return "", oops.With("temp_dir", tempDir, "context", "failed to create temp directory").Wrap(err)
	}

	sum := sha256.Sum256([]byte(fileID + sourceKey))
	path := filepath.Join(tempDir, hex.EncodeToString(sum[:8])+".img")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return "", oops.With("file_id", fileID, "context", "failed to build download request").Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", oops.With("file_id", fileID, "context", "failed to download file").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", oops.With("file_id", fileID, "status", resp.StatusCode).Errorf("unexpected download status")
	}

	out, err := os.Create(path)
	if err != nil {
		return "", oops.With("path", path, "context", "failed to create temp file").Wrap(err)
	}
	defer out.Close()

	// Telegram's reported size is advisory; enforce the cap on the bytes
	// actually received.
	written, err := io.Copy(out, io.LimitReader(resp.Body, h.maxImageBytes()+1))
	if err != nil {
		os.Remove(path)
		return "", oops.With("path", path, "context", "failed to write temp file").Wrap(err)
	}
	if written > h.maxImageBytes() {
		os.Remove(path)
		return "", oops.With("path", path, "size_bytes", written).Errorf("downloaded image exceeds %dMB", h.cfg.MaxImageSizeMB)
	}

	return path, nil
}

func (h *Handler) replyForError(ctx context.Context, b *bot.Bot, chatID int64, err error) {
	switch {
	case errors.Is(err, sharederrors.ErrInvalidSourceKey),
		errors.Is(err, sharederrors.ErrUnauthorizedSource):
		h.reply(ctx, b, chatID, "Unauthorized chat. Access denied.")
	case errors.Is(err, sharederrors.ErrRateLimited):
		h.reply(ctx, b, chatID, "Rate limit exceeded. Please slow down.")
	case errors.Is(err, sharederrors.ErrEmptyContent):
		// Nothing worth answering.
	case errors.Is(err, sharederrors.ErrStorageUnavailable):
		h.reply(ctx, b, chatID, "Internal error occurred. Please try again later.")
	default:
		slog.Error("pipeline error", "error", err)
		h.reply(ctx, b, chatID, "Internal error occurred. Please try again later.")
	}
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		slog.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) maxImageBytes() int64 {
	return int64(h.cfg.MaxImageSizeMB) * 1024 * 1024
}

// Helper functions
func authorName(msg *models.Message) string {
	if msg.From != nil {
		if msg.From.Username != "" {
			return msg.From.Username
		}
		if msg.From.FirstName != "" {
			return msg.From.FirstName
		}
	}
	return "Unknown"
}
