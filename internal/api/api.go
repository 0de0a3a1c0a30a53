// Package api provides HTTP handlers and the main server logic for the
// wardrobe assistant client core.
//
// It exposes endpoints for the chat conversation, the pricing/feature-gating
// resolver, and the application lifecycle signals (focus, visibility) that
// drive cache revalidation.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/closetiq/closetiq/internal/assistant"
	"github.com/closetiq/closetiq/internal/auth"
	"github.com/closetiq/closetiq/internal/chat"
	"github.com/closetiq/closetiq/internal/conversation"
	"github.com/closetiq/closetiq/internal/notify"
	"github.com/closetiq/closetiq/internal/pricing"
	"github.com/closetiq/closetiq/internal/scheduler"
	"github.com/closetiq/closetiq/internal/store"
	"github.com/closetiq/closetiq/internal/tierapi"
)

// DefaultAddr is the API listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures API server construction.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the conversation store, chat service, and pricing resolver
// behind HTTP handlers.
type Server struct {
	addr      string
	persist   store.Store
	convo     *conversation.Store
	chatSvc   *chat.Service
	resolver  *pricing.Resolver
	authState *auth.State
	sched     *scheduler.Scheduler
}

// Run assembles every module and serves the API until the listener fails.
func Run(storeOpts []store.Option, assistantOpts []assistant.Option, tierOpts []tierapi.Option, notifyOpts []notify.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	persist, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	convo := conversation.NewStore(conversation.WithPersistence(persist))

	authState := auth.NewState()
	if userID := os.Getenv("AUTH_USER_ID"); userID != "" {
		authState.SetUser(&auth.User{
			ID:    userID,
			Email: os.Getenv("AUTH_USER_EMAIL"),
			Phone: os.Getenv("AUTH_USER_PHONE"),
		})
		slog.Info("Run: signed in from environment", "userID", userID)
	}

	var notifier notify.Notifier
	if len(notifyOpts) > 0 {
		tn, err := notify.NewTwilioNotifier(notifyOpts...)
		if err != nil {
			return fmt.Errorf("initialize twilio notifier: %w", err)
		}
		notifier = tn
		slog.Info("Run: notifications delivered via Twilio SMS")
	} else {
		notifier = notify.NewLogNotifier()
		slog.Debug("Run: no Twilio configuration, notifications go to the log")
	}

	var asst assistant.ClientInterface
	if client, err := assistant.NewClient(assistantOpts...); err != nil {
		slog.Warn("Run: OpenAI assistant unavailable, using canned replies", "error", err)
		asst = assistant.NewStaticAssistant()
	} else {
		asst = client
	}

	var tierSvc tierapi.Service
	if len(tierOpts) > 0 {
		client, err := tierapi.NewClient(tierOpts...)
		if err != nil {
			return fmt.Errorf("initialize tier service client: %w", err)
		}
		tierSvc = client
	} else {
		tierSvc = tierapi.NewStaticService()
		slog.Debug("Run: no tier service URL, using static catalog")
	}

	resolver := pricing.NewResolver(tierSvc, authState, notifier)
	chatSvc := chat.NewService(convo, asst, notifier)

	sched := scheduler.NewScheduler()
	sched.AddEvery(pricing.UserTierRevalidateEvery, resolver.RevalidateUserTier)
	sched.AddEvery(pricing.CatalogRevalidateEvery, resolver.RevalidateCatalog)
	sched.AddEvery(pricing.GCInterval, resolver.CollectGarbage)

	s := &Server{
		addr:      addr,
		persist:   persist,
		convo:     convo,
		chatSvc:   chatSvc,
		resolver:  resolver,
		authState: authState,
		sched:     sched,
	}
	defer s.Close()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	slog.Info("API server listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

// registerRoutes attaches every handler to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/chat/message", s.chatMessageHandler)
	mux.HandleFunc("/chat/conversation", s.chatConversationHandler)
	mux.HandleFunc("/chat/reset", s.chatResetHandler)
	mux.HandleFunc("/chat/clear", s.chatClearHandler)
	mux.HandleFunc("/chat/open", s.chatOpenHandler)
	mux.HandleFunc("/pricing/tier", s.pricingTierHandler)
	mux.HandleFunc("/pricing/tiers", s.pricingTiersHandler)
	mux.HandleFunc("/pricing/refresh", s.pricingRefreshHandler)
	mux.HandleFunc("/pricing/feature", s.pricingFeatureHandler)
	mux.HandleFunc("/app/focus", s.appFocusHandler)
	mux.HandleFunc("/app/visibility", s.appVisibilityHandler)
}

// Close stops the scheduler and releases the persistence backend.
func (s *Server) Close() {
	if s.sched != nil {
		s.sched.Stop()
	}
	if s.persist != nil {
		if err := s.persist.Close(); err != nil {
			slog.Error("Server.Close: failed to close store", "error", err)
		}
	}
}
