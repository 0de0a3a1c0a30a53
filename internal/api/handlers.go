// Package api provides HTTP handlers for the client core endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/closetiq/closetiq/internal/models"
)

// conversationPayload is the live view of the conversation returned over HTTP.
type conversationPayload struct {
	Messages          []models.Message `json:"messages"`
	ConversationID    string           `json:"conversation_id,omitempty"`
	RemainingMessages *int             `json:"remaining_messages,omitempty"`
	Open              bool             `json:"open"`
}

func (s *Server) chatMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatMessageHandler: processing message request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatMessageHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	botMsg, err := s.chatSvc.HandleUserMessage(r.Context(), req.Text)
	switch {
	case errors.Is(err, models.ErrEmptyMessageText), errors.Is(err, models.ErrMessageTextTooLong):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case errors.Is(err, models.ErrQuotaExhausted):
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error(err.Error()))
		return
	case err != nil:
		slog.Error("Server.chatMessageHandler: failed to handle message", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to handle message"))
		return
	}

	slog.Info("Server.chatMessageHandler: message handled", "reply_id", botMsg.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(botMsg))
}

func (s *Server) chatConversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.chatConversationHandler: processing request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := conversationPayload{
		Messages: s.convo.Messages(),
		Open:     s.convo.IsOpen(),
	}
	if id, ok := s.convo.ConversationID(); ok {
		payload.ConversationID = id
	}
	if remaining, ok := s.convo.RemainingMessages(); ok {
		payload.RemainingMessages = &remaining
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

func (s *Server) chatResetHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.chatResetHandler: processing reset request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.convo.Reset()
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Conversation reset"))
}

func (s *Server) chatClearHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.chatClearHandler: processing clear request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.convo.ClearMessages()
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Transcript cleared"))
}

func (s *Server) chatOpenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatOpenHandler: processing open request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatOpenHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	s.convo.SetOpen(req.Open)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

func (s *Server) pricingTierHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.pricingTierHandler: processing tier request", "method", r.Method)
	switch r.Method {
	case http.MethodGet:
		info, err := s.resolver.FetchUserTier(r.Context())
		switch {
		case errors.Is(err, models.ErrNotAuthenticated):
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(err.Error()))
			return
		case err != nil:
			slog.Error("Server.pricingTierHandler: failed to fetch tier", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch tier"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(info))
	case http.MethodPost:
		var req struct {
			Tier models.TierKey `json:"tier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Server.pricingTierHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		err := s.resolver.UpdateTier(r.Context(), req.Tier)
		switch {
		case errors.Is(err, models.ErrEmptyTierKey):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		case errors.Is(err, models.ErrNotAuthenticated):
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(err.Error()))
			return
		case err != nil:
			slog.Error("Server.pricingTierHandler: failed to update tier", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update tier"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Tier updated"))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) pricingTiersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pricingTiersHandler: processing catalog request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tiers, err := s.resolver.FetchAllTiers(r.Context())
	if err != nil {
		slog.Error("Server.pricingTiersHandler: failed to fetch catalog", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch tier catalog"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tiers))
}

func (s *Server) pricingRefreshHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pricingRefreshHandler: processing refresh request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.resolver.RefreshAll()
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Pricing caches invalidated"))
}

func (s *Server) pricingFeatureHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.pricingFeatureHandler: processing feature request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required query parameter: name"))
		return
	}

	feature := models.FeatureName(name)
	payload := struct {
		Name    models.FeatureName `json:"name"`
		Enabled bool               `json:"enabled"`
		Limit   int                `json:"limit"`
	}{
		Name:    feature,
		Enabled: s.resolver.HasFeature(feature),
		Limit:   s.resolver.FeatureLimit(feature),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

func (s *Server) appFocusHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.appFocusHandler: processing focus signal", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.resolver.NotifyFocus()
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

func (s *Server) appVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.appVisibilityHandler: processing visibility signal", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.appVisibilityHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	s.resolver.SetVisible(req.Visible)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}
