package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-arena/agora/internal/arena"
	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/storage"
)

// sseHeaders prepares the response for server-sent events and disables the
// server's WriteTimeout for the long-lived connection.
func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	return flusher, true
}

func writeSSE(w io.Writer, flusher http.Flusher, ev model.StreamEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func terminalEvent(name string) bool {
	return name == model.EventComplete || name == model.EventError
}

// subHandle hands a broadcaster unsubscribe func between goroutines and
// guarantees it runs exactly once even when the client disconnects before
// the debate row exists.
type subHandle struct {
	mu    sync.Mutex
	unsub func()
	done  bool
}

func (s *subHandle) set(unsub func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		unsub()
		return
	}
	s.unsub = unsub
}

func (s *subHandle) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// streamDebate runs a debate while relaying its live events to the client
// as SSE. The debate itself runs detached from the request context: a
// spectator dropping the connection must not void the contest.
func (h *Handlers) streamDebate(w http.ResponseWriter, r *http.Request, start arena.StartRequest, release func()) {
	flusher, ok := sseHeaders(w)
	if !ok {
		release()
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	// Buffered well past one debate's worth of events; a stalled client
	// drops events rather than stalling the debate.
	events := make(chan model.StreamEvent, 64)
	sub := &subHandle{}
	defer sub.close()

	start.OnCreated = func(id uuid.UUID) {
		sub.set(h.broadcaster.Subscribe(id, func(ev model.StreamEvent) {
			select {
			case events <- ev:
			default:
			}
		}))
	}

	runErr := make(chan error, 1)
	go func() {
		defer release()
		_, err := h.arena.Run(context.WithoutCancel(r.Context()), start)
		runErr <- err
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if writeSSE(w, flusher, ev) != nil || terminalEvent(ev.Event) {
				return
			}
		case err := <-runErr:
			// Flush whatever the subscription already buffered, then close.
			for {
				select {
				case ev := <-events:
					if writeSSE(w, flusher, ev) != nil || terminalEvent(ev.Event) {
						return
					}
				default:
					if err != nil {
						// Failed before the first event (no pairing, bad ids).
						_ = writeSSE(w, flusher, model.StreamEvent{
							Event: model.EventError,
							Data:  model.ErrorPayload{Message: err.Error()},
						})
					}
					return
				}
			}
		}
	}
}

// HandleDebateEvents handles GET /v1/debates/{debate_id}/events (SSE).
// Spectators attach to an in-flight debate and receive events from the
// moment of subscription onward.
func (h *Handlers) HandleDebateEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("debate_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid debate id")
		return
	}

	debate, err := h.store.GetDebate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "debate not found")
			return
		}
		h.logger.Error("get debate", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load debate")
		return
	}
	if debate.Status == model.DebateStatusCompleted || debate.Status == model.DebateStatusFailed {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "debate already finished")
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	events := make(chan model.StreamEvent, 64)
	unsub := h.broadcaster.Subscribe(id, func(ev model.StreamEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsub()

	// The debate may have finished between the status check and the
	// subscription; re-check so the stream cannot hang forever.
	if fresh, err := h.store.GetDebate(r.Context(), id); err == nil {
		if fresh.Status == model.DebateStatusCompleted || fresh.Status == model.DebateStatusFailed {
			_ = writeSSE(w, flusher, model.StreamEvent{
				Event: model.EventComplete,
				Data:  model.CompletePayload{DebateID: id},
			})
			return
		}
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if writeSSE(w, flusher, ev) != nil || terminalEvent(ev.Event) {
				return
			}
		}
	}
}
