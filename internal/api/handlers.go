// Package api exposes HTTP handlers for the signup service.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"example.com/extracurricular/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/activities", h.activities)
	mux.HandleFunc("/activities/", h.activitySignup)
	mux.HandleFunc("/healthz", healthz)
}

// RegisterStatic serves the signup page from assets under /static/ and redirects / to it.
// The file server answers /static/ with index.html.
func RegisterStatic(mux *http.ServeMux, assets fs.FS) {
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "not_found", "route not found")
			return
		}
		http.Redirect(w, r, "/static/", http.StatusTemporaryRedirect)
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	activities, err := h.service.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := make(map[string]ActivityView, len(activities))
	for name, activity := range activities {
		resp[name] = toActivityView(activity)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) activitySignup(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/activities/"), "/signup")
	if !ok || name == "" {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	query := r.URL.Query()
	if !query.Has("email") && (r.Method == http.MethodPost || r.Method == http.MethodDelete) {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing email parameter")
		return
	}
	email := query.Get("email")

	var (
		message string
		err     error
	)
	switch r.Method {
	case http.MethodPost:
		message, err = h.service.SignUp(r.Context(), name, email)
	case http.MethodDelete:
		message, err = h.service.Unregister(r.Context(), name, email)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// ActivityView is the JSON shape of a single activity.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	SpotsLeft       int      `json:"spots_left"`
	Participants    []string `json:"participants"`
}

// MessageResponse confirms a successful roster change.
type MessageResponse struct {
	Message string `json:"message"`
}

func toActivityView(activity domain.Activity) ActivityView {
	participants := activity.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		SpotsLeft:       activity.SpotsLeft(),
		Participants:    participants,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Student is not signed up for this activity")
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeError(w, http.StatusBadRequest, "already_registered", "Student is already signed up for this activity")
	case errors.Is(err, domain.ErrActivityFull):
		writeError(w, http.StatusBadRequest, "activity_full", "Activity is full")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"type": code, "detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
