package control

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the chi router exposing JSON-RPC over HTTP POST "/" and
// WebSocket "/". NewRouter itself is pure: no listener is opened, no
// goroutine started, so it is safe to drive with httptest.NewServer.
func NewRouter(f *Facade) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/", f.handleRPC)
	r.Get("/", f.handleRPCOrUpgrade)
	return r
}

func (f *Facade) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, errorResponse(nil, ErrParse, "could not read request body"))
		return
	}
	resp := f.Dispatch(r.Context(), body)
	writeJSON(w, resp)
}

// handleRPCOrUpgrade allows the same "/" route to serve the WebSocket
// handshake for GET requests carrying the Upgrade header, per spec.md §6's
// single-route JSON-RPC-over-HTTP-or-WebSocket contract.
func (f *Facade) handleRPCOrUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") == "websocket" {
		f.ServeWS(w, r)
		return
	}
	writeJSON(w, errorResponse(nil, ErrInvalidRequest, "GET not supported, use POST or a WebSocket upgrade"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
