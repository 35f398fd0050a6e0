package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
)

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// roomsHandler - the browse surface: discoverable rooms with a free seat,
// newest first.
func (that *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms, err := that.rooms.ListOpenRooms(r.Context())
	if err != nil {
		that.logger.Error("failed to list rooms", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(rooms); err != nil {
		that.logger.Error("failed to encode rooms", "error", err)
	}
}

// sessionHandler - read-only session lookup for spectators.
func (that *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if key == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := that.rooms.GetSession(r.Context(), key)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		that.logger.Error("failed to get session", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(session); err != nil {
		that.logger.Error("failed to encode session", "key", key, "error", err)
	}
}
