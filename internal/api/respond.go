package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/reedfamily/chatlog/internal/history"
	"github.com/reedfamily/chatlog/internal/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a failed pool job to a response. A full or stopped
// pool means the service is overloaded.
func writeFailure(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrClosed), errors.Is(err, pipeline.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "server busy, try again")
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

// pageFrom reads the page and size query parameters. Garbage is treated
// like a missing value and clamped by history.NewPage.
func pageFrom(r *http.Request) history.Page {
	number, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return history.NewPage(number, size)
}

// Page is the envelope of every paged listing.
type Page[T any] struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Items []T `json:"items"`
}

func newPage[T any](p history.Page, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Page: p.Number, Size: p.Size, Items: items}
}
