package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/ingest"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/samber/lo"
)

// EventHandler is the write input for game servers that push events instead
// of being tailed.
type EventHandler struct {
	dispatcher *ingest.Dispatcher
}

func NewEventHandler(d *ingest.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

type accepted struct {
	Accepted bool        `json:"accepted"`
	ID       *uuid.UUID  `json:"id,omitempty"`
	IDs      []uuid.UUID `json:"ids,omitempty"`
}

// Post accepts one event or a JSON array of events. With wait=true it
// answers only once the records are stored.
func (h *EventHandler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wait := r.URL.Query().Get("wait") == "true"

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var evs []mapper.Event
		if err := json.Unmarshal(trimmed, &evs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for _, ev := range evs {
			if !lo.Contains(mapper.Kinds, ev.Kind) {
				writeError(w, http.StatusBadRequest, "unknown event kind: "+string(ev.Kind))
				return
			}
		}
		fut, ids := h.dispatcher.HandleBatch(evs)
		if fut == nil {
			writeJSON(w, http.StatusOK, accepted{})
			return
		}
		if wait {
			if _, err := fut.Wait(r.Context()); err != nil {
				writeFailure(w, err, "failed to store events")
				return
			}
		} else if err := fut.Err(); err != nil {
			writeFailure(w, err, "failed to store events")
			return
		}
		writeJSON(w, status(wait), accepted{Accepted: true, IDs: ids})
		return
	}

	var ev mapper.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !lo.Contains(mapper.Kinds, ev.Kind) {
		writeError(w, http.StatusBadRequest, "unknown event kind: "+string(ev.Kind))
		return
	}
	p, ok := h.dispatcher.Handle(ev)
	if !ok {
		writeJSON(w, http.StatusOK, accepted{})
		return
	}
	if wait {
		if _, err := p.Wait(r.Context()); err != nil {
			writeFailure(w, err, "failed to store event")
			return
		}
	} else if err := p.Err(); err != nil {
		writeFailure(w, err, "failed to store event")
		return
	}
	writeJSON(w, status(wait), accepted{Accepted: true, ID: &p.ID})
}

func status(waited bool) int {
	if waited {
		return http.StatusCreated
	}
	return http.StatusAccepted
}
