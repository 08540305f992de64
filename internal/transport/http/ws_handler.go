package http

import (
	"context"
	"log/slog"
	"net/http"

	"quiz-room-service/internal/domain"

	"github.com/gorilla/websocket"
)

// IdentityResolver authenticates an HTTP request.
type IdentityResolver interface {
	Resolve(r *http.Request) (domain.Identity, error)
}

type WSHandler struct {
	resolver   IdentityResolver
	dispatcher *Dispatcher
	log        *slog.Logger
	opts       ClientOptions
	upgrader   websocket.Upgrader
}

func NewWSHandler(resolver IdentityResolver, dispatcher *Dispatcher, log *slog.Logger, allowedOrigin string, opts ClientOptions) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        log,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser clients)
// and, when allowed is set, browsers on that exact origin.
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowed == "" || origin == "" || origin == allowed
	}
}

// ServeWS authenticates the request, upgrades it and runs the connection until it closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		h.log.Debug("ws connection refused", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "connection refused", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "user", identity.Username, "err", err)
		return
	}

	client := newClient(conn, h.log.With("user", identity.Username), h.opts)
	session := NewSession(identity, client)
	client.log.Info("ws connected")

	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump()
	}()

	client.readPump(func(data []byte) {
		h.dispatcher.Handle(ctx, session, data)
	})

	cancel()
	session.Wait()
	h.dispatcher.Disconnect(session)
	client.close()
	<-writerDone
	client.log.Info("ws disconnected")
}
