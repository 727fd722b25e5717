package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"

	"internship-digest/internal/pipeline"
	"internship-digest/internal/poll"
)

type RunsHandler struct {
	BaseCtx context.Context
	Runner  *poll.Runner
}

func (h RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Runner.Status())
}

// Trigger starts a run in the background and returns 202. The run outlives
// the request; its outcome shows up in /runs/status and on /events.
func (h RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := RequestIDFrom(r.Context())

	err := h.Runner.Go(ctx, func(res pipeline.Result, err error) {
		if err != nil {
			log.Printf("[runs] request_id=%s run=%s failed: %v", reqID, res.RunID, err)
		}
	})
	if errors.Is(err, poll.ErrAlreadyRunning) {
		WriteError(w, r, http.StatusConflict, "already_running", err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
