// Package models defines the core data structures for ClosetIQ.
//
// It includes types for chat messages, persisted conversation snapshots, and
// pricing tiers, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageSender identifies which side of the conversation produced a message.
type MessageSender string

const (
	// SenderUser marks a message typed by the user.
	SenderUser MessageSender = "user"
	// SenderBot marks a message produced by the stylist assistant.
	SenderBot MessageSender = "bot"
)

// Validation constants for input validation
const (
	// MaxMessageTextLength defines the maximum allowed length for chat message text
	MaxMessageTextLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessageID     = errors.New("message id cannot be empty")
	ErrEmptyMessageText   = errors.New("message text cannot be empty")
	ErrMessageTextTooLong = errors.New("message text exceeds maximum length")
	ErrInvalidSender      = errors.New("invalid message sender")
	ErrZeroTimestamp      = errors.New("message timestamp is not set")
	ErrNotAuthenticated   = errors.New("no authenticated user")
	ErrQuotaExhausted     = errors.New("message quota exhausted")
	ErrEmptyTierKey       = errors.New("tier key cannot be empty")
)

// IsValidSender checks if the given sender is supported.
func IsValidSender(s MessageSender) bool {
	switch s {
	case SenderUser, SenderBot:
		return true
	default:
		return false
	}
}

// Message represents one chat turn in a conversation transcript.
// Messages are never mutated after insertion; a transcript only grows or is
// reset wholesale.
type Message struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Sender    MessageSender `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
	Error     bool          `json:"error,omitempty"` // marks a bot turn that replaced a failed reply
}

// Validate performs validation on a Message before it enters a transcript.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrEmptyMessageID
	}
	if m.Text == "" {
		return ErrEmptyMessageText
	}
	if len(m.Text) > MaxMessageTextLength {
		return ErrMessageTextTooLong
	}
	if !IsValidSender(m.Sender) {
		return ErrInvalidSender
	}
	if m.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// PersistedMessage is the storage representation of a Message. Timestamps are
// encoded as RFC 3339 text so the snapshot survives a text-based persistence
// layer; in-memory code always works with time.Time.
type PersistedMessage struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Sender    MessageSender `json:"sender"`
	Timestamp string        `json:"timestamp"`
	Error     bool          `json:"error,omitempty"`
}

// ToPersisted converts a Message into its storage representation.
func (m Message) ToPersisted() PersistedMessage {
	return PersistedMessage{
		ID:        m.ID,
		Text:      m.Text,
		Sender:    m.Sender,
		Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		Error:     m.Error,
	}
}

// ToMessage converts a storage representation back into a Message.
// The decoded timestamp compares equal, as an instant, to the one encoded.
func (p PersistedMessage) ToMessage() (Message, error) {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        p.ID,
		Text:      p.Text,
		Sender:    p.Sender,
		Timestamp: ts,
		Error:     p.Error,
	}, nil
}

// ConversationSnapshot is the persisted projection of a conversation session.
// The open/closed widget flag is deliberately not part of the snapshot; it
// always hydrates to closed.
type ConversationSnapshot struct {
	Messages          []PersistedMessage `json:"messages"`
	ConversationID    string             `json:"conversation_id,omitempty"`
	RemainingMessages *int               `json:"remaining_messages,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Recorded creates a recorded API response.
func Recorded() APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRecorded).
		Build()
}

// RecordedWithMessage creates a recorded API response with a message.
func RecordedWithMessage(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRecorded).
		WithMessage(message).
		Build()
}
