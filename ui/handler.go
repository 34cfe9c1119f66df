// Package ui serves stored transcripts over HTTP.
//
// Handler mounts a small read-only viewer: an HTML page per session that
// renders every message's blocks with the render package, a JSON API for
// messages, and, when a notifier is configured, a server-sent event stream
// announcing newly saved messages.
//
// Usage:
//
//	http.Handle("/ui/", http.StripPrefix("/ui", ui.Handler(store, &ui.Config{BasePath: "/ui"})))
package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/youssefsiam38/tagstream/notifier"
	"github.com/youssefsiam38/tagstream/render"
	"github.com/youssefsiam38/tagstream/storage"
)

// Handler returns an http.Handler serving the messages in store.
// notes may be nil, in which case the events endpoint answers 404.
//
// Routes:
//
//	GET /sessions/{id}                  HTML transcript
//	GET /sessions/{id}/events           server-sent message_saved events
//	GET /api/sessions/{id}/messages     JSON, paged with limit and offset
//	GET /api/messages/{id}              JSON
func Handler(store storage.Store, notes *notifier.Notifier, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	// Invalid configuration is a programmer error
	if err := cfg.validate(); err != nil {
		panic("ui: " + err.Error())
	}

	renderer, err := render.New(cfg.MaxParamLen)
	if err != nil {
		panic("ui: " + err.Error())
	}

	h := &handler{store: store, notes: notes, config: cfg, renderer: renderer}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}", h.handleSessionPage)
	mux.HandleFunc("GET /sessions/{id}/events", h.handleSessionEvents)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.handleListMessages)
	mux.HandleFunc("GET /api/messages/{id}", h.handleGetMessage)

	return recoveryMiddleware(mux, cfg.Logger)
}

type handler struct {
	store    storage.Store
	notes    *notifier.Notifier
	config   *Config
	renderer *render.Renderer
}

// Response wraps all API responses.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
	Meta  *Meta     `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination metadata.
type Meta struct {
	TotalCount int  `json:"total_count"`
	HasMore    bool `json:"has_more,omitempty"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, Response{Error: &APIError{Code: code, Message: err.Error()}})
}

// parseInt parses a non-negative query parameter, falling back to def.
func parseInt(r *http.Request, key string, def int) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return def, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, key)
	}
	return i, nil
}

func (h *handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseInt(r, "limit", h.config.PageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	offset, err := parseInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit = max(1, min(limit, MaxPageSize))

	msgs, err := h.store.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		h.config.Logger.Error("failed to list messages", "session_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	total := len(msgs)
	start := min(offset, total)
	end := min(start+limit, total)
	page := msgs[start:end]
	if page == nil {
		page = []*storage.Message{}
	}

	writeJSON(w, http.StatusOK, Response{
		Data: page,
		Meta: &Meta{TotalCount: total, HasMore: end < total, Limit: limit, Offset: offset},
	})
}

func (h *handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.store.GetMessage(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrMessageNotFound) {
		writeError(w, http.StatusNotFound, "not_found", ErrNotFound)
		return
	}
	if err != nil {
		h.config.Logger.Error("failed to get message", "message_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: msg})
}

type pageMessage struct {
	*storage.Message
	HTML template.HTML
}

type pageData struct {
	Title     string
	BasePath  string
	SessionID string
	Live      bool
	Messages  []pageMessage
}

var pageTemplate = template.Must(template.New("session").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} · {{.SessionID}}</title>
</head>
<body>
<h1>{{.SessionID}}</h1>
{{- range .Messages}}
<section class="ts-entry{{if .Partial}} ts-truncated{{end}}" id="msg-{{.ID}}">
<header>{{.Role}} · {{.CreatedAt.Format "2006-01-02 15:04:05"}}{{if .Usage}} · {{.Usage.TotalTokens}} tokens{{end}}{{if .Partial}} · truncated{{end}}</header>
{{.HTML}}
</section>
{{- else}}
<p>No messages.</p>
{{- end}}
{{- if .Live}}
<script>new EventSource("{{.BasePath}}/sessions/{{.SessionID}}/events").addEventListener("message_saved", () => location.reload());</script>
{{- end}}
</body>
</html>
`))

func (h *handler) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	msgs, err := h.store.GetMessages(r.Context(), sessionID)
	if err != nil {
		h.config.Logger.Error("failed to list messages", "session_id", sessionID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:     h.config.Title,
		BasePath:  h.config.BasePath,
		SessionID: sessionID,
		Live:      h.notes != nil,
	}
	for _, m := range msgs {
		body, err := h.renderer.HTML(m.Blocks)
		if err != nil {
			h.config.Logger.Error("failed to render message", "message_id", m.ID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		data.Messages = append(data.Messages, pageMessage{Message: m, HTML: body})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.config.Logger.Warn("failed to write session page", "session_id", sessionID, "error", err)
	}
}

func (h *handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if h.notes == nil {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "sse_not_supported", errors.New("streaming not supported"))
		return
	}

	events := make(chan *notifier.Event, 16)
	unsubscribe := h.notes.Subscribe(r.PathValue("id"), func(ev *notifier.Event) {
		select {
		case events <- ev:
		default:
			// slow client; the page reloads on the next event anyway
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, _ := json.Marshal(ev.MessageSavedPayload)
			if _, err := fmt.Fprintf(w, "event: message_saved\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
