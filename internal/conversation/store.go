// Package conversation implements the chat session state store.
//
// The store is the single source of truth for an in-progress chat session: an
// ordered transcript seeded with a welcome message, an optional conversation
// identifier, an optional remaining-message quota, and a transient open/closed
// widget flag. The first three fields are persisted as one JSON blob under a
// fixed key after every mutation; the widget flag always hydrates to closed.
package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/closetiq/closetiq/internal/models"
	"github.com/closetiq/closetiq/internal/store"
)

// StorageKey is the fixed key the conversation snapshot is persisted under.
const StorageKey = "chatbot-storage"

// SeedMessageID identifies the welcome message that anchors every transcript.
const SeedMessageID = "welcome"

const seedMessageText = "Hey! I'm your personal stylist. Ask me about outfits, colors, or what to wear next — I know your closet."

// seedMessage builds the welcome message a fresh or reset transcript starts with.
func seedMessage() models.Message {
	return models.Message{
		ID:        SeedMessageID,
		Text:      seedMessageText,
		Sender:    models.SenderBot,
		Timestamp: time.Now(),
	}
}

// Opts holds configuration for constructing a conversation store.
type Opts struct {
	Persistence store.Store
}

// Option configures conversation store construction.
type Option func(*Opts)

// WithPersistence attaches a durable store; every mutation writes the
// persisted snapshot through it.
func WithPersistence(st store.Store) Option {
	return func(o *Opts) {
		o.Persistence = st
	}
}

// Store holds the conversation session state. All exported methods are safe
// for concurrent use; batch appends are observed atomically.
type Store struct {
	mu             sync.RWMutex
	messages       []models.Message
	conversationID string // "" means absent
	remaining      *int   // nil means unknown
	open           bool   // transient, never persisted
	persist        store.Store
}

// NewStore creates a conversation store, hydrating persisted state when a
// persistence backend is configured and a snapshot exists. The widget flag
// always initializes to closed regardless of what was persisted.
func NewStore(opts ...Option) *Store {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{persist: cfg.Persistence}
	if !s.hydrate() {
		s.messages = []models.Message{seedMessage()}
	}
	slog.Debug("conversation.NewStore: store ready", "messages", len(s.messages), "persisted", cfg.Persistence != nil)
	return s
}

// AddMessage appends one message to the end of the transcript. Insertion
// order is display order; colliding IDs are retained as-is.
func (s *Store) AddMessage(msg models.Message) error {
	if err := msg.Validate(); err != nil {
		slog.Error("Store.AddMessage validation failed", "error", err, "id", msg.ID)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.persistLocked()
	slog.Debug("Store.AddMessage succeeded", "id", msg.ID, "sender", msg.Sender, "count", len(s.messages))
	return nil
}

// AddMessages appends an ordered batch. The batch is validated up front and
// applied under one lock, so no reader observes a partial append.
func (s *Store) AddMessages(msgs []models.Message) error {
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			slog.Error("Store.AddMessages validation failed", "error", err, "index", i, "id", msgs[i].ID)
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	s.persistLocked()
	slog.Debug("Store.AddMessages succeeded", "batch", len(msgs), "count", len(s.messages))
	return nil
}

// ClearMessages resets the transcript to the seed message. Conversation ID
// and quota are left untouched.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []models.Message{seedMessage()}
	s.persistLocked()
	slog.Debug("Store.ClearMessages succeeded")
}

// SetConversationID replaces the conversation identifier unconditionally.
func (s *Store) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
	s.persistLocked()
	slog.Debug("Store.SetConversationID succeeded", "conversationID", id)
}

// ConversationID returns the conversation identifier, if one is assigned.
func (s *Store) ConversationID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID, s.conversationID != ""
}

// SetRemainingMessages replaces the quota unconditionally. Zero and negative
// values are accepted without clamping.
func (s *Store) SetRemainingMessages(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = &count
	s.persistLocked()
	slog.Debug("Store.SetRemainingMessages succeeded", "remaining", count)
}

// RemainingMessages returns the quota. The second return value is false when
// no quota is known.
func (s *Store) RemainingMessages() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.remaining == nil {
		return 0, false
	}
	return *s.remaining, true
}

// SetOpen replaces the widget visibility flag. No other field is affected and
// nothing is persisted.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
	slog.Debug("Store.SetOpen succeeded", "open", open)
}

// IsOpen reports whether the chat widget is open.
func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Reset performs the compound reset: transcript back to the seed message,
// conversation ID and quota cleared. The widget flag is untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []models.Message{seedMessage()}
	s.conversationID = ""
	s.remaining = nil
	s.persistLocked()
	slog.Info("Store.Reset: conversation reset to seed state")
}

// MessageCount returns the current transcript length. It is at least 1, since
// the seed message survives every reset.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastMessage returns the most recently appended message. The second return
// value is false only for a transcript that has never held a message, which
// does not occur in practice because of the seed.
func (s *Store) LastMessage() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return models.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Messages returns a copy of the transcript in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
