package host

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/rs/zerolog"
)

// Handler accepts widget connections over websocket. Widgets whose Origin
// header the policy rejects get a 403 before any upgrade happens.
type Handler struct {
	policy   *origin.Policy
	host     bridge.HostMethods
	upgrader websocket.Upgrader
	opts     []ServeOption
	logger   zerolog.Logger

	mu        sync.Mutex
	clients   map[string]*Client
	onConnect func(*Client)
	closed    bool
}

// NewHandler serves h to every widget policy admits.
func NewHandler(policy *origin.Policy, h bridge.HostMethods, logger zerolog.Logger, opts ...ServeOption) *Handler {
	logger = logger.With().Str("component", "host").Logger()
	return &Handler{
		policy: policy,
		host:   h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The origin was already checked against the policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		opts:    append([]ServeOption{WithLogger(logger)}, opts...),
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// OnConnect registers fn to run for each widget after its handshake.
func (h *Handler) OnConnect(fn func(*Client)) {
	h.mu.Lock()
	h.onConnect = fn
	h.mu.Unlock()
}

// Clients returns the widgets currently connected
func (h *Handler) Clients() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	widgetOrigin := r.Header.Get("Origin")
	if !h.policy.IsAllowed(widgetOrigin) {
		h.logger.Warn().Str("origin", widgetOrigin).Msg("rejected widget from disallowed origin")
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	t, err := channel.AcceptWebsocket(w, r, h.upgrader)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends with this handler; the handshake gets its own.
	client, err := Serve(context.Background(), t, h.host, h.opts...)
	if err != nil {
		h.logger.Warn().Err(err).Str("origin", widgetOrigin).Msg("widget handshake failed")
		return
	}
	h.logger.Info().Str("origin", widgetOrigin).Str("channel_id", client.ID()).Strs("methods", client.Methods()).Msg("widget connected")

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return
	}
	h.clients[client.ID()] = client
	onConnect := h.onConnect
	h.mu.Unlock()

	if onConnect != nil {
		onConnect(client)
	}

	<-client.Done()
	h.mu.Lock()
	delete(h.clients, client.ID())
	h.mu.Unlock()
	h.logger.Info().Err(client.Err()).Str("channel_id", client.ID()).Msg("widget disconnected")
}

// Close disconnects every widget and refuses new ones.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
