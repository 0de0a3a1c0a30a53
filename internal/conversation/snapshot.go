// Package conversation persistence: the snapshot projection and hydration.
//
// Only the transcript, conversation ID, and quota are serialized — an
// explicit projection, not storage-layer field filtering. Timestamps cross
// the text boundary as RFC 3339 and come back as instants.
package conversation

import (
	"encoding/json"
	"log/slog"

	"github.com/closetiq/closetiq/internal/models"
)

// snapshotLocked builds the persisted projection of the current state.
// Callers must hold s.mu.
func (s *Store) snapshotLocked() models.ConversationSnapshot {
	snap := models.ConversationSnapshot{
		Messages:       make([]models.PersistedMessage, 0, len(s.messages)),
		ConversationID: s.conversationID,
	}
	for _, msg := range s.messages {
		snap.Messages = append(snap.Messages, msg.ToPersisted())
	}
	if s.remaining != nil {
		remaining := *s.remaining
		snap.RemainingMessages = &remaining
	}
	return snap
}

// persistLocked writes the current snapshot through the persistence backend.
// Callers must hold s.mu, which keeps snapshot writes in mutation order.
// Persistence failures are logged, never surfaced to the mutating caller.
func (s *Store) persistLocked() {
	if s.persist == nil {
		return
	}

	data, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		slog.Error("Store.persistLocked marshal failed", "error", err)
		return
	}
	if err := s.persist.SaveBlob(StorageKey, string(data)); err != nil {
		slog.Error("Store.persistLocked save failed", "error", err)
		return
	}
	slog.Debug("Store.persistLocked succeeded", "size", len(data))
}

// hydrate loads a persisted snapshot, if one exists, into the store. Returns
// false when no usable snapshot was found and the caller should seed fresh
// state. A corrupt snapshot is logged and discarded rather than failing.
func (s *Store) hydrate() bool {
	if s.persist == nil {
		return false
	}

	raw, found, err := s.persist.GetBlob(StorageKey)
	if err != nil {
		slog.Error("Store.hydrate load failed", "error", err)
		return false
	}
	if !found {
		slog.Debug("Store.hydrate: no persisted snapshot")
		return false
	}

	var snap models.ConversationSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		slog.Error("Store.hydrate unmarshal failed, starting fresh", "error", err)
		return false
	}
	if len(snap.Messages) == 0 {
		slog.Warn("Store.hydrate: snapshot has empty transcript, starting fresh")
		return false
	}

	messages := make([]models.Message, 0, len(snap.Messages))
	for i, pm := range snap.Messages {
		msg, err := pm.ToMessage()
		if err != nil {
			slog.Error("Store.hydrate timestamp decode failed, starting fresh", "error", err, "index", i, "id", pm.ID)
			return false
		}
		messages = append(messages, msg)
	}

	s.messages = messages
	s.conversationID = snap.ConversationID
	if snap.RemainingMessages != nil {
		remaining := *snap.RemainingMessages
		s.remaining = &remaining
	}
	// The widget flag is transient and always hydrates to closed.
	s.open = false

	slog.Info("Store.hydrate: restored persisted conversation", "messages", len(messages), "conversationID_set", snap.ConversationID != "")
	return true
}
