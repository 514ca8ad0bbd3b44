// Package site serves the embedded allocation dashboard.
package site

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the dashboard routes to r.
//
//	GET /          -> dashboard page
//	GET /assets/*  -> scripts and styles
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	files := http.FileServer(FS())
	r.Get("/", NewRootHandler(files).HandleRoot)
	r.Handle("/assets/*", files)
}

// RootHandler serves the dashboard page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler(files http.Handler) *RootHandler {
	return &RootHandler{files: files}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
