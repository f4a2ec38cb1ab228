package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browser peers connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades to a websocket and hands
// the connection to hub.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}

		client := newClient(hub, conn)
		select {
		case hub.register <- client:
		case <-hub.stopped:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// healthHandler reports the hub's counters.
func healthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := hub.Stats(r.Context())
		if err != nil {
			http.Error(w, "hub stopped", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
			Stats
		}{Status: "ok", Stats: stats})
	}
}

// NewMux wires the broker routes.
func NewMux(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(hub))
	mux.HandleFunc("/ws", ServeWs(hub))
	return mux
}

// ListenAndServe runs a hub and its HTTP server on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string) error {
	hub := NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting signaling broker", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down signaling broker")
	return srv.Shutdown(shutdownCtx)
}
