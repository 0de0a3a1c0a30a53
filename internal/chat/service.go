// Package chat orchestrates a user turn: append the user message, obtain a
// stylist reply, and keep the conversation store and quota consistent.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/closetiq/closetiq/internal/assistant"
	"github.com/closetiq/closetiq/internal/conversation"
	"github.com/closetiq/closetiq/internal/models"
	"github.com/closetiq/closetiq/internal/notify"
)

const (
	quotaExhaustedMessage = "You've used up your messages for now. Upgrade your plan to keep chatting."
	replyFailedText       = "Sorry, I couldn't come up with an answer just now. Please try again in a moment."
)

// Service handles inbound user messages end to end.
type Service struct {
	store     *conversation.Store
	assistant assistant.ClientInterface
	notifier  notify.Notifier
}

// NewService creates a chat service over the given collaborators.
func NewService(store *conversation.Store, asst assistant.ClientInterface, notifier notify.Notifier) *Service {
	return &Service{store: store, assistant: asst, notifier: notifier}
}

// HandleUserMessage processes one user turn. The user message is appended
// first, then a reply is generated over the full transcript. A generation
// failure appends an error-flagged bot message instead of surfacing the error;
// the turn itself still succeeds from the caller's point of view.
func (s *Service) HandleUserMessage(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, models.ErrEmptyMessageText
	}

	if remaining, known := s.store.RemainingMessages(); known && remaining <= 0 {
		slog.Debug("Service.HandleUserMessage rejected, quota exhausted", "remaining", remaining)
		s.notifier.Failure(ctx, quotaExhaustedMessage)
		return models.Message{}, models.ErrQuotaExhausted
	}

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    models.SenderUser,
		Timestamp: time.Now(),
	}
	if err := s.store.AddMessage(userMsg); err != nil {
		return models.Message{}, err
	}

	if _, ok := s.store.ConversationID(); !ok {
		s.store.SetConversationID(uuid.NewString())
	}

	reply, err := s.assistant.GenerateReply(ctx, s.store.Messages())
	if err != nil {
		slog.Error("Service.HandleUserMessage reply generation failed", "error", err)
		s.notifier.Failure(ctx, replyFailedText)
		botMsg := models.Message{
			ID:        uuid.NewString(),
			Text:      replyFailedText,
			Sender:    models.SenderBot,
			Timestamp: time.Now(),
			Error:     true,
		}
		if addErr := s.store.AddMessage(botMsg); addErr != nil {
			return models.Message{}, addErr
		}
		return botMsg, nil
	}

	botMsg := models.Message{
		ID:        uuid.NewString(),
		Text:      reply,
		Sender:    models.SenderBot,
		Timestamp: time.Now(),
	}
	if err := s.store.AddMessage(botMsg); err != nil {
		return models.Message{}, err
	}

	if remaining, known := s.store.RemainingMessages(); known {
		s.store.SetRemainingMessages(remaining - 1)
	}

	slog.Debug("Service.HandleUserMessage succeeded", "messages", s.store.MessageCount())
	return botMsg, nil
}
