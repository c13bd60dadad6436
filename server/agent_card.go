package server

import (
	"encoding/json"
	"net/http"

	"github.com/sammcj/go-a2a-core/a2a"
)

// DefaultAgentCardPath is the default path for serving the agent card.
const DefaultAgentCardPath = "/.well-known/agent.json"

// AgentCardHandler returns an HTTP handler that serves the agent card.
func AgentCardHandler(card *a2a.AgentCard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		jsonData, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow CORS for discovery
		_, _ = w.Write(jsonData)
	}
}

// RegisterAgentCardHandler registers the agent card handler with the provided ServeMux.
func RegisterAgentCardHandler(mux *http.ServeMux, card *a2a.AgentCard, cardPath string) {
	mux.Handle(normalizePath(cardPath, DefaultAgentCardPath), AgentCardHandler(card))
}

// normalizePath ensures p starts with a slash, falling back to def when empty.
func normalizePath(p, def string) string {
	if p == "" {
		return def
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}
