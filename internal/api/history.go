package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/chatlog/internal/history"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/reedfamily/chatlog/internal/store"
)

// HistoryHandler serves the read side. Handlers wait on the read pool with
// the request context, so a client that goes away stops waiting.
type HistoryHandler struct {
	history *history.Service
	server  func() string
}

func NewHistoryHandler(h *history.Service, server func() string) *HistoryHandler {
	return &HistoryHandler{history: h, server: server}
}

// player resolves the {player} URL parameter, writing the error response
// itself when it cannot.
func (h *HistoryHandler) player(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	p, err := h.history.ResolvePlayer(chi.URLParam(r, "player")).Wait(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrPlayerNotFound) {
			writeError(w, http.StatusNotFound, "player not found")
		} else {
			writeFailure(w, err, "failed to load player")
		}
		return model.Identity{}, false
	}
	return p, true
}

func respond[T any](w http.ResponseWriter, r *http.Request, p history.Page, f *pipeline.Future[[]T], what string) {
	items, err := f.Wait(r.Context())
	if err != nil {
		writeFailure(w, err, "failed to load "+what)
		return
	}
	writeJSON(w, http.StatusOK, newPage(p, items))
}

func (h *HistoryHandler) Players(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	res, err := h.history.Players(page).Wait(r.Context())
	if err != nil {
		writeFailure(w, err, "failed to load players")
		return
	}
	if res.Players == nil {
		res.Players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.CombinedHistory(p.ID, page), "history")
}

func (h *HistoryHandler) Chat(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.ByPlayer(p.ID, page), "chat history")
}

func (h *HistoryHandler) Commands(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.CommandsByPlayer(p.ID, page), "command history")
}

func (h *HistoryHandler) Enriched(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	items, err := h.history.EnrichedByPlayer(p.ID, page).Wait(r.Context())
	if errors.Is(err, store.ErrViewUnavailable) {
		writeError(w, http.StatusNotImplemented, "enriched history is unavailable on this database")
		return
	}
	if err != nil {
		writeFailure(w, err, "failed to load enriched history")
		return
	}
	writeJSON(w, http.StatusOK, newPage(page, items))
}

func (h *HistoryHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.Sessions(p.ID, page), "sessions")
}

func (h *HistoryHandler) Count(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	c, err := h.history.CountByPlayer(p.ID).Wait(r.Context())
	if err != nil {
		writeFailure(w, err, "failed to load counts")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Player model.Identity `json:"player"`
		history.Counts
	}{p, c})
}

func (h *HistoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.Search(q, page), "search results")
}

func (h *HistoryHandler) Range(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 time")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an RFC 3339 time")
		return
	}
	page := pageFrom(r)
	items, err := h.history.ByTimeRange(from, to, page).Wait(r.Context())
	if errors.Is(err, history.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeFailure(w, err, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, newPage(page, items))
}

func (h *HistoryHandler) ServerEvents(w http.ResponseWriter, r *http.Request) {
	server := r.URL.Query().Get("server")
	if server == "" {
		server = h.server()
	}
	page := pageFrom(r)
	respond(w, r, page, h.history.ServerEvents(server, page), "server events")
}
