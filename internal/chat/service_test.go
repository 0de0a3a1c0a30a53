package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/closetiq/closetiq/internal/conversation"
	"github.com/closetiq/closetiq/internal/models"
)

// fakeAssistant returns a fixed reply or error.
type fakeAssistant struct {
	reply string
	err   error
	seen  []models.Message
}

func (f *fakeAssistant) GenerateReply(ctx context.Context, transcript []models.Message) (string, error) {
	f.seen = transcript
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type captureNotifier struct {
	mu       sync.Mutex
	failures []string
}

func (n *captureNotifier) Success(ctx context.Context, message string) {}

func (n *captureNotifier) Failure(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, message)
}

func TestHandleUserMessageSuccess(t *testing.T) {
	store := conversation.NewStore()
	asst := &fakeAssistant{reply: "Try the linen shirt with chinos."}
	svc := NewService(store, asst, &captureNotifier{})

	botMsg, err := svc.HandleUserMessage(context.Background(), "what should I wear to brunch?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if botMsg.Sender != models.SenderBot || botMsg.Text != asst.reply || botMsg.Error {
		t.Errorf("bot message wrong: %+v", botMsg)
	}

	// Seed + user + bot
	if store.MessageCount() != 3 {
		t.Errorf("transcript has %d messages, want 3", store.MessageCount())
	}
	msgs := store.Messages()
	if msgs[1].Sender != models.SenderUser || msgs[1].Text != "what should I wear to brunch?" {
		t.Errorf("user message wrong: %+v", msgs[1])
	}

	// The assistant sees the transcript including the new user turn.
	if len(asst.seen) != 2 || asst.seen[1].Sender != models.SenderUser {
		t.Errorf("assistant saw %d messages", len(asst.seen))
	}

	if _, ok := store.ConversationID(); !ok {
		t.Error("conversation ID not minted on first message")
	}
}

func TestHandleUserMessageKeepsExistingConversationID(t *testing.T) {
	store := conversation.NewStore()
	store.SetConversationID("conv-1")
	svc := NewService(store, &fakeAssistant{reply: "ok"}, &captureNotifier{})

	if _, err := svc.HandleUserMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := store.ConversationID(); id != "conv-1" {
		t.Errorf("conversation ID replaced: %s", id)
	}
}

func TestHandleUserMessageTrimsAndRejectsEmpty(t *testing.T) {
	store := conversation.NewStore()
	svc := NewService(store, &fakeAssistant{reply: "ok"}, &captureNotifier{})

	if _, err := svc.HandleUserMessage(context.Background(), "   \n\t "); err != models.ErrEmptyMessageText {
		t.Errorf("got %v, want ErrEmptyMessageText", err)
	}
	if store.MessageCount() != 1 {
		t.Error("rejected message must not enter the transcript")
	}
}

func TestHandleUserMessageQuotaExhausted(t *testing.T) {
	store := conversation.NewStore()
	store.SetRemainingMessages(0)
	notifier := &captureNotifier{}
	svc := NewService(store, &fakeAssistant{reply: "ok"}, notifier)

	if _, err := svc.HandleUserMessage(context.Background(), "hi"); !errors.Is(err, models.ErrQuotaExhausted) {
		t.Errorf("got %v, want ErrQuotaExhausted", err)
	}
	if store.MessageCount() != 1 {
		t.Error("quota-rejected message must not enter the transcript")
	}
	if len(notifier.failures) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(notifier.failures))
	}
}

func TestHandleUserMessageDecrementsKnownQuota(t *testing.T) {
	store := conversation.NewStore()
	store.SetRemainingMessages(3)
	svc := NewService(store, &fakeAssistant{reply: "ok"}, &captureNotifier{})

	if _, err := svc.HandleUserMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining, _ := store.RemainingMessages(); remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestHandleUserMessageUnknownQuotaStaysUnknown(t *testing.T) {
	store := conversation.NewStore()
	svc := NewService(store, &fakeAssistant{reply: "ok"}, &captureNotifier{})

	if _, err := svc.HandleUserMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.RemainingMessages(); ok {
		t.Error("unknown quota must not be invented")
	}
}

func TestHandleUserMessageAssistantFailure(t *testing.T) {
	store := conversation.NewStore()
	store.SetRemainingMessages(3)
	notifier := &captureNotifier{}
	svc := NewService(store, &fakeAssistant{err: errors.New("model unavailable")}, notifier)

	botMsg, err := svc.HandleUserMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("assistant failure must not fail the turn: %v", err)
	}
	if !botMsg.Error || botMsg.Sender != models.SenderBot {
		t.Errorf("expected error-flagged bot message, got %+v", botMsg)
	}
	if len(notifier.failures) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(notifier.failures))
	}

	// User turn stays in the transcript; quota is not charged for a failed reply.
	if store.MessageCount() != 3 {
		t.Errorf("transcript has %d messages, want 3", store.MessageCount())
	}
	if remaining, _ := store.RemainingMessages(); remaining != 3 {
		t.Errorf("quota charged for failed reply: %d", remaining)
	}
}
