package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/closetiq/closetiq/internal/models"
	"github.com/closetiq/closetiq/internal/store"
)

func userMessage(id, text string) models.Message {
	return models.Message{ID: id, Text: text, Sender: models.SenderUser, Timestamp: time.Now()}
}

func TestNewStoreSeedsWelcomeMessage(t *testing.T) {
	s := NewStore()
	if s.MessageCount() != 1 {
		t.Fatalf("fresh store has %d messages, want 1", s.MessageCount())
	}
	last, ok := s.LastMessage()
	if !ok || last.ID != SeedMessageID || last.Sender != models.SenderBot {
		t.Errorf("seed message wrong: %+v", last)
	}
}

func TestAddMessageAppendsInOrder(t *testing.T) {
	s := NewStore()
	if err := s.AddMessage(userMessage("m1", "first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddMessage(userMessage("m2", "second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[1].ID != "m1" || msgs[2].ID != "m2" {
		t.Errorf("messages out of insertion order: %s, %s", msgs[1].ID, msgs[2].ID)
	}
}

func TestAddMessageRejectsInvalid(t *testing.T) {
	s := NewStore()
	err := s.AddMessage(models.Message{ID: "m1", Sender: models.SenderUser, Timestamp: time.Now()})
	if err != models.ErrEmptyMessageText {
		t.Errorf("got %v, want ErrEmptyMessageText", err)
	}
	if s.MessageCount() != 1 {
		t.Error("invalid message must not enter the transcript")
	}
}

func TestAddMessagesBatchAtomicity(t *testing.T) {
	s := NewStore()
	batch := []models.Message{
		userMessage("m1", "ok"),
		{ID: "m2", Sender: models.SenderUser, Timestamp: time.Now()}, // invalid: empty text
	}
	if err := s.AddMessages(batch); err != models.ErrEmptyMessageText {
		t.Errorf("got %v, want ErrEmptyMessageText", err)
	}
	if s.MessageCount() != 1 {
		t.Errorf("partial batch applied: %d messages", s.MessageCount())
	}

	if err := s.AddMessages([]models.Message{userMessage("m1", "a"), userMessage("m2", "b")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MessageCount() != 3 {
		t.Errorf("got %d messages, want 3", s.MessageCount())
	}
}

func TestClearMessagesKeepsIDAndQuota(t *testing.T) {
	s := NewStore()
	s.AddMessage(userMessage("m1", "hi"))
	s.SetConversationID("conv-1")
	s.SetRemainingMessages(7)

	s.ClearMessages()

	if s.MessageCount() != 1 {
		t.Errorf("transcript not reset to seed: %d messages", s.MessageCount())
	}
	if id, ok := s.ConversationID(); !ok || id != "conv-1" {
		t.Error("clear must not touch the conversation ID")
	}
	if remaining, ok := s.RemainingMessages(); !ok || remaining != 7 {
		t.Error("clear must not touch the quota")
	}
}

func TestResetClearsEverythingButOpenFlag(t *testing.T) {
	s := NewStore()
	s.AddMessage(userMessage("m1", "hi"))
	s.SetConversationID("conv-1")
	s.SetRemainingMessages(7)
	s.SetOpen(true)

	s.Reset()

	if s.MessageCount() != 1 {
		t.Errorf("transcript not reset to seed: %d messages", s.MessageCount())
	}
	last, _ := s.LastMessage()
	if last.ID != SeedMessageID {
		t.Errorf("seed message missing after reset, got %s", last.ID)
	}
	if _, ok := s.ConversationID(); ok {
		t.Error("conversation ID survived reset")
	}
	if _, ok := s.RemainingMessages(); ok {
		t.Error("quota survived reset")
	}
	if !s.IsOpen() {
		t.Error("reset must not touch the open flag")
	}
}

func TestRemainingMessagesUnknownByDefault(t *testing.T) {
	s := NewStore()
	if _, ok := s.RemainingMessages(); ok {
		t.Error("fresh store should have no known quota")
	}
	s.SetRemainingMessages(0)
	if remaining, ok := s.RemainingMessages(); !ok || remaining != 0 {
		t.Error("zero quota must be stored, not treated as unknown")
	}
	s.SetRemainingMessages(-2)
	if remaining, _ := s.RemainingMessages(); remaining != -2 {
		t.Error("negative quota must be stored without clamping")
	}
}

func TestOpenFlagDefaultsClosed(t *testing.T) {
	s := NewStore()
	if s.IsOpen() {
		t.Error("fresh store should start closed")
	}
	s.SetOpen(true)
	if !s.IsOpen() {
		t.Error("SetOpen(true) not applied")
	}
}

func TestHydrationRoundTrip(t *testing.T) {
	backend := store.NewInMemoryStore()

	first := NewStore(WithPersistence(backend))
	msg := models.Message{
		ID:        "m1",
		Text:      "what goes with a navy blazer?",
		Sender:    models.SenderUser,
		Timestamp: time.Date(2025, 6, 14, 9, 30, 15, 123456789, time.UTC),
	}
	if err := first.AddMessage(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.SetConversationID("conv-1")
	first.SetRemainingMessages(4)
	first.SetOpen(true)

	second := NewStore(WithPersistence(backend))

	if second.MessageCount() != 2 {
		t.Fatalf("hydrated %d messages, want 2", second.MessageCount())
	}
	last, _ := second.LastMessage()
	if last.ID != "m1" || last.Text != msg.Text || last.Sender != msg.Sender {
		t.Errorf("hydrated message wrong: %+v", last)
	}
	if !last.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("hydrated timestamp instant differs: %v != %v", last.Timestamp, msg.Timestamp)
	}
	if id, ok := second.ConversationID(); !ok || id != "conv-1" {
		t.Error("conversation ID not hydrated")
	}
	if remaining, ok := second.RemainingMessages(); !ok || remaining != 4 {
		t.Error("quota not hydrated")
	}
	if second.IsOpen() {
		t.Error("open flag must hydrate to closed")
	}
}

func TestHydrationIgnoresCorruptSnapshot(t *testing.T) {
	backend := store.NewInMemoryStore()
	backend.SaveBlob(StorageKey, "{not json")

	s := NewStore(WithPersistence(backend))
	if s.MessageCount() != 1 {
		t.Errorf("corrupt snapshot should yield a fresh seed, got %d messages", s.MessageCount())
	}
	last, _ := s.LastMessage()
	if last.ID != SeedMessageID {
		t.Errorf("expected seed message, got %s", last.ID)
	}
}

func TestHydrationIgnoresEmptyTranscript(t *testing.T) {
	backend := store.NewInMemoryStore()
	backend.SaveBlob(StorageKey, `{"messages":[]}`)

	s := NewStore(WithPersistence(backend))
	if s.MessageCount() != 1 {
		t.Errorf("empty snapshot should yield a fresh seed, got %d messages", s.MessageCount())
	}
}

func TestSnapshotExcludesOpenFlag(t *testing.T) {
	backend := store.NewInMemoryStore()
	s := NewStore(WithPersistence(backend))
	s.SetOpen(true)
	s.SetConversationID("conv-1")

	raw, found, err := backend.GetBlob(StorageKey)
	if err != nil || !found {
		t.Fatalf("snapshot missing: found=%v err=%v", found, err)
	}
	for _, fragment := range []string{`"open"`, `"isOpen"`} {
		if strings.Contains(raw, fragment) {
			t.Errorf("persisted snapshot leaks the open flag: %s", raw)
		}
	}
}
