// Package api exposes HTTP handlers for the activity roster.
package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"example.com/roster/internal/domain"
)

//go:embed static
var staticFiles embed.FS

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	static  fs.FS
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return &Handler{service: service, static: sub}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", rootRedirect)
	mux.HandleFunc("GET /static/", h.staticFile)
	mux.HandleFunc("GET /activities", h.listActivities)
	mux.HandleFunc("POST /activities/{activity}/signup", h.signUp)
	mux.HandleFunc("DELETE /activities/{activity}/participants/{email}", h.unregister)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func rootRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/index.html", http.StatusTemporaryRedirect)
}

// staticFile serves the embedded UI without FileServer's index.html redirect.
func (h *Handler) staticFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/static/")
	if name == "" {
		name = "index.html"
	}
	data, err := fs.ReadFile(h.static, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities := h.service.ListActivities(r.Context())

	index := make(ActivityIndex, 0, len(activities))
	for _, activity := range activities {
		index = append(index, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, index)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	email := query.Get("email")
	if !query.Has("email") || email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "email query parameter is required")
		return
	}

	enrollment, err := h.service.SignUp(r.Context(), r.PathValue("activity"), email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: enrollment.Message()})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.service.Unregister(r.Context(), r.PathValue("activity"), r.PathValue("email"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: enrollment.Message()})
}

// MessageResponse is the body returned by successful roster mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// ActivityView is the public representation of one activity.
type ActivityView struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// ActivityIndex encodes as a JSON object keyed by activity name, keeping slice order.
type ActivityIndex []ActivityView

// MarshalJSON implements json.Marshaler.
func (idx ActivityIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, view := range idx {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(view.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(view)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toActivityView(activity domain.Activity) ActivityView {
	participants := activity.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Name:            activity.Name,
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		Participants:    participants,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		writeError(w, http.StatusBadRequest, "already_enrolled", "Student already signed up for this activity")
	case errors.Is(err, domain.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Participant not found in this activity")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
