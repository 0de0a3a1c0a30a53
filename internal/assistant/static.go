package assistant

import (
	"context"
	"sync"

	"github.com/closetiq/closetiq/internal/models"
)

// staticReplies are cycled through by the StaticAssistant.
var staticReplies = []string{
	"Great question! A fitted blazer over a plain tee works with almost everything you own.",
	"I'd pair that with dark denim and white sneakers — easy and sharp.",
	"For that occasion, go one notch dressier than you think you need.",
	"Try building around one statement piece and keeping the rest neutral.",
}

// StaticAssistant returns canned stylist replies. It stands in for the OpenAI
// client when no API key is configured and in tests.
type StaticAssistant struct {
	mu   sync.Mutex
	next int
}

// NewStaticAssistant creates a canned-reply assistant.
func NewStaticAssistant() *StaticAssistant {
	return &StaticAssistant{}
}

// GenerateReply returns the next canned reply in rotation.
func (a *StaticAssistant) GenerateReply(ctx context.Context, transcript []models.Message) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	reply := staticReplies[a.next%len(staticReplies)]
	a.next++
	return reply, nil
}
