package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/closetiq/closetiq/internal/assistant"
	"github.com/closetiq/closetiq/internal/auth"
	"github.com/closetiq/closetiq/internal/chat"
	"github.com/closetiq/closetiq/internal/conversation"
	"github.com/closetiq/closetiq/internal/models"
	"github.com/closetiq/closetiq/internal/notify"
	"github.com/closetiq/closetiq/internal/pricing"
	"github.com/closetiq/closetiq/internal/tierapi"
)

// newTestServer assembles a server over in-memory collaborators.
func newTestServer(signedIn bool) (*Server, *http.ServeMux) {
	convo := conversation.NewStore()
	authState := auth.NewState()
	if signedIn {
		authState.SetUser(&auth.User{ID: "u1"})
	}
	notifier := notify.NewLogNotifier()
	resolver := pricing.NewResolver(tierapi.NewStaticService(), authState, notifier)
	chatSvc := chat.NewService(convo, assistant.NewStaticAssistant(), notifier)

	s := &Server{
		addr:      DefaultAddr,
		convo:     convo,
		chatSvc:   chatSvc,
		resolver:  resolver,
		authState: authState,
	}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s, mux
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestChatMessageHandler(t *testing.T) {
	s, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"what should I wear?"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) || resp.Result == nil {
		t.Errorf("response = %+v", resp)
	}
	if s.convo.MessageCount() != 3 {
		t.Errorf("transcript has %d messages, want 3", s.convo.MessageCount())
	}
}

func TestChatMessageHandlerRejectsEmptyText(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"  "}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatMessageHandlerQuotaExhausted(t *testing.T) {
	s, mux := newTestServer(false)
	s.convo.SetRemainingMessages(0)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestChatMessageHandlerMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodGet, "/chat/message", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Errorf("Allow header = %q", got)
	}
}

func TestChatConversationHandler(t *testing.T) {
	s, mux := newTestServer(false)
	s.convo.SetConversationID("conv-1")
	s.convo.SetRemainingMessages(5)
	s.convo.SetOpen(true)

	req := httptest.NewRequest(http.MethodGet, "/chat/conversation", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string              `json:"status"`
		Result conversationPayload `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Result.Messages) != 1 || resp.Result.Messages[0].ID != conversation.SeedMessageID {
		t.Errorf("messages = %+v", resp.Result.Messages)
	}
	if resp.Result.ConversationID != "conv-1" || !resp.Result.Open {
		t.Errorf("payload = %+v", resp.Result)
	}
	if resp.Result.RemainingMessages == nil || *resp.Result.RemainingMessages != 5 {
		t.Errorf("remaining = %v", resp.Result.RemainingMessages)
	}
}

func TestChatResetHandler(t *testing.T) {
	s, mux := newTestServer(false)
	s.convo.SetConversationID("conv-1")
	s.convo.SetRemainingMessages(5)

	req := httptest.NewRequest(http.MethodPost, "/chat/reset", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := s.convo.ConversationID(); ok {
		t.Error("reset did not clear the conversation ID")
	}
	if _, ok := s.convo.RemainingMessages(); ok {
		t.Error("reset did not clear the quota")
	}
}

func TestChatOpenHandler(t *testing.T) {
	s, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodPost, "/chat/open", strings.NewReader(`{"open":true}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !s.convo.IsOpen() {
		t.Error("open flag not set")
	}
}

func TestPricingTierHandlerUnauthorized(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodGet, "/pricing/tier", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPricingTierHandlerGet(t *testing.T) {
	_, mux := newTestServer(true)

	req := httptest.NewRequest(http.MethodGet, "/pricing/tier", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result models.TierInfo `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Result.Key != models.TierFree {
		t.Errorf("tier = %s, want free", resp.Result.Key)
	}
}

func TestPricingTierHandlerUpdate(t *testing.T) {
	s, mux := newTestServer(true)

	req := httptest.NewRequest(http.MethodPost, "/pricing/tier", strings.NewReader(`{"tier":"pro"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if key, _ := s.authState.TierKey(); key != models.TierPro {
		t.Errorf("auth tier = %s, want pro", key)
	}
}

func TestPricingTiersHandler(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodGet, "/pricing/tiers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Result []models.TierRecord `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Result) != 3 {
		t.Errorf("got %d tiers, want 3", len(resp.Result))
	}
}

func TestPricingFeatureHandler(t *testing.T) {
	_, mux := newTestServer(true)

	// No tier resolved yet: deny by default.
	req := httptest.NewRequest(http.MethodGet, "/pricing/feature?name=calendar_integration", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Result struct {
			Enabled bool `json:"enabled"`
			Limit   int  `json:"limit"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Result.Enabled {
		t.Error("unresolved tier must deny")
	}
}

func TestPricingFeatureHandlerMissingName(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodGet, "/pricing/feature", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppLifecycleHandlers(t *testing.T) {
	_, mux := newTestServer(false)

	req := httptest.NewRequest(http.MethodPost, "/app/focus", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("focus status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/app/visibility", strings.NewReader(`{"visible":false}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("visibility status = %d", rec.Code)
	}
}

func TestPricingRefreshHandler(t *testing.T) {
	_, mux := newTestServer(true)

	req := httptest.NewRequest(http.MethodPost, "/pricing/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
