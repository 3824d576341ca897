package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deskpilot/deskpilot/internal/auth"
	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/internal/gcal"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// SessionRunner is the slice of the session manager the handlers need.
type SessionRunner interface {
	Send(ctx context.Context, key, input string, bag *credentials.Bag) (string, error)
	SendStream(ctx context.Context, key, input string, bag *credentials.Bag) <-chan models.StreamEvent
}

type secretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type secretKeyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStoreSecret(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		s.jsonError(w, "key and value are required", http.StatusBadRequest)
		return
	}

	if err := s.secrets.Set(r.Context(), user.ID, req.Key, req.Value); err != nil {
		s.logger.Error("failed to store secret", "error", err, "user", user.ID)
		s.jsonError(w, "failed to store secret", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	keys, err := s.secrets.ListKeys(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to list secrets", "error", err, "user", user.ID)
		s.jsonError(w, "failed to list secrets", http.StatusInternalServerError)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.jsonResponse(w, map[string][]string{"keys": keys})
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req secretKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		s.jsonError(w, "key is required", http.StatusBadRequest)
		return
	}

	value, err := s.secrets.Get(r.Context(), user.ID, req.Key)
	if err != nil {
		if errors.Is(err, credentials.ErrSecretNotFound) {
			// Absent secrets are not an error; the value is null.
			s.jsonResponse(w, map[string]any{"key": req.Key, "value": nil})
			return
		}
		s.logger.Error("failed to get secret", "error", err, "user", user.ID)
		s.jsonError(w, "failed to get secret", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]any{"key": req.Key, "value": value})
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req secretKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		s.jsonError(w, "key is required", http.StatusBadRequest)
		return
	}

	if err := s.secrets.Delete(r.Context(), user.ID, req.Key); err != nil {
		if errors.Is(err, credentials.ErrSecretNotFound) {
			s.jsonError(w, "secret not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to delete secret", "error", err, "user", user.ID)
		s.jsonError(w, "failed to delete secret", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// tokenRefreshBuffer refreshes tokens that expire within this window, so a
// token does not go stale mid-run.
const tokenRefreshBuffer = 5 * time.Minute

// bagFor assembles the credentials bag from the user's stored secrets.
// Missing or undecryptable secrets yield a partial or empty bag, never an
// error.
func (s *Server) bagFor(ctx context.Context, userID string) *credentials.Bag {
	secrets, err := s.secrets.GetAll(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load secrets, continuing without credentials", "error", err, "user", userID)
		return &credentials.Bag{}
	}
	bag := credentials.FromSecrets(secrets)
	s.refreshCalendar(ctx, userID, bag)
	return bag
}

// refreshCalendar swaps a stale calendar access token for a fresh one before
// the run starts and persists the result. Failure leaves the stored tokens
// as they were; the run proceeds with the stale token and the provider
// reports the authorization error in-band.
func (s *Server) refreshCalendar(ctx context.Context, userID string, bag *credentials.Bag) {
	if s.oauth == nil || bag.Calendar == nil || bag.Calendar.RefreshToken == "" {
		return
	}
	if !gcal.IsExpired(bag.Calendar.ExpiryDate, tokenRefreshBuffer) {
		return
	}

	tokens, err := s.oauth.Refresh(ctx, bag.Calendar.RefreshToken)
	if err != nil {
		s.logger.Warn("calendar token refresh failed", "error", err, "user", userID)
		return
	}
	bag.Calendar.AccessToken = tokens.AccessToken
	bag.Calendar.RefreshToken = tokens.RefreshToken
	bag.Calendar.ExpiryDate = tokens.ExpiryDate

	stored := map[string]string{
		credentials.SecretCalendarAccessToken:  tokens.AccessToken,
		credentials.SecretCalendarRefreshToken: tokens.RefreshToken,
		credentials.SecretCalendarExpiryDate:   strconv.FormatInt(tokens.ExpiryDate, 10),
	}
	for key, value := range stored {
		if err := s.secrets.Set(ctx, userID, key, value); err != nil {
			s.logger.Warn("failed to persist refreshed calendar tokens", "error", err, "user", userID)
			return
		}
	}
	s.logger.Info("refreshed calendar tokens", "user", userID)
}

func sessionKey(userID, session string) string {
	if session == "" {
		session = "default"
	}
	return userID + ":" + session
}

// handleSendMessage runs one buffered turn and returns the assistant's new
// reply texts as a JSON array (empty when the run produced no text).
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	message := r.URL.Query().Get("message")
	if message == "" {
		s.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	key := sessionKey(user.ID, r.URL.Query().Get("session"))
	bag := s.bagFor(r.Context(), user.ID)

	text, err := s.sessions.Send(r.Context(), key, message, bag)
	if err != nil {
		s.logger.Error("run failed", "error", err, "session", key)
		if s.metrics != nil {
			s.metrics.RecordError("web", "run_failed")
		}
		s.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	responses := []string{}
	if strings.TrimSpace(text) != "" {
		responses = append(responses, strings.TrimSpace(text))
	}
	s.jsonResponse(w, responses)
}

// handleStream runs one streaming turn over SSE: one JSON event per data
// line, ending with exactly one done or error event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	message := r.URL.Query().Get("message")
	if message == "" {
		s.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}

	key := sessionKey(user.ID, r.URL.Query().Get("session"))
	bag := s.bagFor(r.Context(), user.ID)

	for ev := range s.sessions.SendStream(r.Context(), key, message, bag) {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if s.oauth == nil {
		s.jsonError(w, "google oauth not configured", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"url": s.oauth.AuthURL(user.ID)})
}

// handleOAuthCallback finishes the Google flow: it exchanges the code and
// stores the resulting tokens as the user's calendar secrets. The state
// parameter carries the user ID set by handleOAuthURL.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.jsonError(w, "google oauth not configured", http.StatusServiceUnavailable)
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		s.jsonError(w, "code and state are required", http.StatusBadRequest)
		return
	}

	tokens, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("oauth exchange failed", "error", err)
		s.jsonError(w, "failed to exchange code", http.StatusBadRequest)
		return
	}

	stored := map[string]string{
		credentials.SecretCalendarAccessToken:  tokens.AccessToken,
		credentials.SecretCalendarRefreshToken: tokens.RefreshToken,
		credentials.SecretCalendarExpiryDate:   fmt.Sprintf("%d", tokens.ExpiryDate),
	}
	for key, value := range stored {
		if err := s.secrets.Set(r.Context(), state, key, value); err != nil {
			s.logger.Error("failed to store calendar tokens", "error", err, "user", state)
			s.jsonError(w, "failed to store tokens", http.StatusInternalServerError)
			return
		}
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
