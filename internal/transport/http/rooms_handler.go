package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

type RoomsHandler struct {
	resolver IdentityResolver
	registry *app.Registry
	log      *slog.Logger
}

func NewRoomsHandler(resolver IdentityResolver, registry *app.Registry, log *slog.Logger) *RoomsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoomsHandler{resolver: resolver, registry: registry, log: log}
}

type createRoomResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// CreateRoom registers a new room administered by the caller.
func (h *RoomsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, createRoomResponse{Message: "Login required!"})
		return
	}
	code, err := h.registry.CreateRoom(identity.Username)
	if errors.Is(err, domain.ErrRoomCreationExhausted) {
		writeJSON(w, http.StatusBadRequest, createRoomResponse{Message: "Could not create a room"})
		return
	}
	if err != nil {
		h.log.Error("create room failed", "user", identity.Username, "err", err)
		writeJSON(w, http.StatusInternalServerError, createRoomResponse{Message: domain.PublicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, createRoomResponse{Code: code, Message: "Generated a new Room ID"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// NewRouter mounts the service endpoints.
func NewRouter(ws *WSHandler, rooms *RoomsHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/create-room", rooms.CreateRoom)
	mux.HandleFunc("/ws", ws.ServeWS)
	return mux
}
