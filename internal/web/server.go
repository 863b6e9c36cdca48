package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/hostbuddy-notifier/internal/config"
	"github.com/example/hostbuddy-notifier/internal/router"
	"github.com/example/hostbuddy-notifier/internal/slack"
)

// SlackAPI is the slice of the Slack client the HTTP layer uses directly
// (the interactivity callback and the debug routes).
type SlackAPI interface {
	PostMessage(ctx context.Context, msg slack.Message) (string, error)
	DeleteMessage(ctx context.Context, channel, ts string) error
	PostEphemeral(ctx context.Context, channel, user, text string) error
	ScheduledMessages(ctx context.Context, channel string) ([]slack.ScheduledMessage, error)
	SearchMessages(ctx context.Context, query string, count int) ([]slack.SearchMatch, error)
}

type Server struct {
	Router  *router.Router
	Slack   SlackAPI
	Routing config.Routing
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /a008", s.handleSentimentWebhook)
	mux.HandleFunc("POST /slack/interactive", s.handleInteractive)
	mux.HandleFunc("GET /scheduled-messages", s.handleScheduledMessages)
	mux.HandleFunc("GET /test-search", s.handleTestSearch)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Hostbuddy Slack Integration Worker"))
	})

	return withRequestLog(mux)
}

// withRequestLog tags every request with a short ID so interleaved batch
// logs stay attributable.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		log.Printf("[%s] %s %s", id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// webhookPayload keeps action_items raw so a missing or non-list value is a
// no-op rather than a request failure.
type webhookPayload struct {
	ActionItems json.RawMessage `json:"action_items"`
}

func decodeItems(r *http.Request) ([]router.ActionItem, bool, error) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, false, err
	}
	if len(payload.ActionItems) == 0 {
		return nil, false, nil
	}
	var items []router.ActionItem
	if err := json.Unmarshal(payload.ActionItems, &items); err != nil {
		// action_items present but not a list; treat like an empty batch.
		return nil, false, nil
	}
	return items, true, nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	items, ok, err := decodeItems(r)
	if err != nil {
		log.Printf("web: error processing webhook: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if ok {
		s.Router.Process(r.Context(), items)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleSentimentWebhook(w http.ResponseWriter, r *http.Request) {
	items, ok, err := decodeItems(r)
	if err != nil {
		log.Printf("web: error processing a008 webhook: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !ok {
		log.Printf("web: a008 webhook received with no action_items")
	} else {
		s.Router.ProcessSentiment(r.Context(), items)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type interactionPayload struct {
	Type    string `json:"type"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
}

func (s *Server) handleInteractive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var payload interactionPayload
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &payload); err != nil {
		log.Printf("web: error handling Slack interaction: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if payload.Type != "block_actions" || len(payload.Actions) == 0 ||
		payload.Actions[0].ActionID != router.ResolveActionID {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	var action router.ResolvePayload
	if err := json.Unmarshal([]byte(payload.Actions[0].Value), &action); err != nil {
		log.Printf("web: error decoding resolve payload: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Ack Slack within its 3s deadline; the side effects run detached from
	// the request.
	w.WriteHeader(http.StatusOK)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.resolveItem(ctx, action, payload.User.ID, payload.User.Name, payload.Channel.ID, payload.Message.TS)
	}()
}

// resolveItem performs the three resolution side effects. They are
// independently best-effort: each failure is logged and the rest still run.
func (s *Server) resolveItem(ctx context.Context, action router.ResolvePayload, userID, userName, channelID, messageTS string) {
	if err := s.Slack.DeleteMessage(ctx, channelID, messageTS); err != nil {
		log.Printf("web: error deleting resolved message: %v", err)
	}

	md := fmt.Sprintf("✅ *Action Item Resolved by %s*\n\n*Property:* %s\n*Guest:* %s\n*Description:* %s\n*Category:* %s\n*Item ID:* %s",
		userName, orNA(action.PropertyName), orNA(action.GuestName), orNA(action.Item), orNA(action.Category), action.ItemID)
	_, err := s.Slack.PostMessage(ctx, slack.Message{
		Channel: s.Routing.ResolvedChannel,
		Text:    fmt.Sprintf("Action item resolved by %s", userName),
		Blocks:  []slack.Block{slack.Section(md)},
	})
	if err != nil {
		log.Printf("web: error posting resolution message: %v", err)
	}

	confirmation := fmt.Sprintf("An action item was marked as resolved by %s. The action item you just resolved is logged in #data-channel so you can check there when necessary.\nIf you accidentally resolved something, that's a great place to bring it back.", userName)
	if err := s.Slack.PostEphemeral(ctx, channelID, userID, confirmation); err != nil {
		log.Printf("web: error sending ephemeral confirmation: %v", err)
	}
}

func (s *Server) handleScheduledMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.Slack.ScheduledMessages(r.Context(), s.Routing.OpsChannel)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	type scheduled struct {
		ID                  string `json:"id"`
		ChannelID           string `json:"channel_id"`
		PostAt              int64  `json:"post_at"`
		PostAtReadable      string `json:"post_at_readable"`
		Text                string `json:"text"`
		DateCreated         int64  `json:"date_created"`
		DateCreatedReadable string `json:"date_created_readable"`
	}
	out := make([]scheduled, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, scheduled{
			ID:                  m.ID,
			ChannelID:           m.ChannelID,
			PostAt:              m.PostAt,
			PostAtReadable:      time.Unix(m.PostAt, 0).UTC().Format(time.RFC3339),
			Text:                m.Text,
			DateCreated:         m.DateCreated,
			DateCreatedReadable: time.Unix(m.DateCreated, 0).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                 true,
		"count":              len(out),
		"scheduled_messages": out,
	})
}

func (s *Server) handleTestSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = fmt.Sprintf("in:#%s %q", s.Routing.ReviewChannelName, "ARRIVAL-DEPARTURE")
	}
	matches, err := s.Slack.SearchMessages(r.Context(), query, 10)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "query": query, "matches": matches})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("listening on %s", addr)
	return srv.ListenAndServe()
}
