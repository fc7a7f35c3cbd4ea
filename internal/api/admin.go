package api

import (
	"net/http"

	"github.com/reedfamily/chatlog/internal/ingest"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/retention"
	"github.com/reedfamily/chatlog/internal/stats"
)

// Operations is what the admin endpoints drive on the running service.
type Operations interface {
	Reload() error
	DefaultWorld() string
}

type AdminHandler struct {
	ops        Operations
	dispatcher *ingest.Dispatcher
	retention  *retention.Service
	collector  *stats.Collector
}

func NewAdminHandler(ops Operations, d *ingest.Dispatcher, ret *retention.Service, c *stats.Collector) *AdminHandler {
	return &AdminHandler{ops: ops, dispatcher: d, retention: ret, collector: c}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Snapshot())
}

func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.ops.Reload(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "failed to reload config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "config reloaded"})
}

// Test writes a system message through the whole pipeline and waits for it.
func (h *AdminHandler) Test(w http.ResponseWriter, r *http.Request) {
	p, ok := h.dispatcher.Handle(mapper.Event{
		Kind:  mapper.KindSystem,
		Text:  "chatlog test message",
		World: h.ops.DefaultWorld(),
	})
	if !ok {
		writeError(w, http.StatusConflict, "test message was not logged, check that logging and system messages are enabled")
		return
	}
	if _, err := p.Wait(r.Context()); err != nil {
		writeFailure(w, err, "failed to store test message")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "test message stored", "id": p.ID})
}

func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	age, err := retention.ParseAge(r.URL.Query().Get("older_than"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "older_than must be a duration like 720h or 90d")
		return
	}
	res, err := h.retention.Purge(r.Context(), age)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to purge records")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
