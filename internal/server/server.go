// Package server exposes the synced sentence store over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kotosync/kotosync/internal/store"
)

// Server serves random and direct sentence lookups plus request stats.
type Server struct {
	store *store.Store
	stats *Stats
}

// New creates a Server backed by st
func New(st *store.Store) *Server {
	return &Server{
		store: st,
		stats: NewStats(),
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/", s.handleSentence)
	return mux
}

// handleSentence serves GET / (random, with optional c/min_length/
// max_length filters and encode=text) and GET /{uuid}.
func (s *Server) handleSentence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.stats.Increment()

	if path := strings.Trim(r.URL.Path, "/"); path != "" {
		s.byUUID(w, r, path)
		return
	}
	s.random(w, r)
}

func (s *Server) random(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.Filter{}
	if c := query.Get("c"); c != "" {
		filter.Categories = strings.Split(c, ",")
	}

	var err error
	if filter.MinLength, err = parseLength(query.Get("min_length")); err != nil {
		http.Error(w, "invalid min_length", http.StatusBadRequest)
		return
	}
	if filter.MaxLength, err = parseLength(query.Get("max_length")); err != nil {
		http.Error(w, "invalid max_length", http.StatusBadRequest)
		return
	}

	sentence, err := s.store.Random(r.Context(), filter)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "no sentence found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if query.Get("encode") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, sentence.Text)
		return
	}
	writeJSON(w, sentence)
}

func (s *Server) byUUID(w http.ResponseWriter, r *http.Request, uuid string) {
	sentence, err := s.store.ByUUID(r.Context(), uuid)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "no sentence found with the given uuid", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sentence)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.stats.Snapshot())
}

func parseLength(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid length %q", raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
