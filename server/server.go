// Package server exposes a Launcher over HTTP and WebSocket.
//
// Routes:
//
//	GET    /health       liveness probe
//	GET    /tools        tool catalog
//	POST   /tasks        run a task (JSON result, or NDJSON events when stream is set)
//	DELETE /tasks/{id}   cancel a running task
//	GET    /tasks/{id}/events  replay the recorded events of a task
//	GET    /ws/tasks     run one task per connection, streaming its events
//
// Streamed events are core.Envelope values; the last line (or message) is a
// result envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/agentlauncher"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/logging"
)

// ResultType is the type of the final envelope of a streamed task.
const ResultType = "result"

// TaskRequest starts a task.
type TaskRequest struct {
	Task           string `json:"task"`
	SessionID      string `json:"session_id,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// TaskResponse is the outcome of a task.
type TaskResponse struct {
	Type    string `json:"type,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Result  string `json:"result"`
	OK      bool   `json:"ok"`
}

// HistorySource replays the recorded events of a task, e.g. a persisting
// natsbridge.Bridge.
type HistorySource interface {
	History(ctx context.Context, primaryID string) ([]core.Envelope, error)
}

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// History backs GET /tasks/{id}/events. The route answers 501 without it.
	History HistorySource
	// EventBuffer is the per-task queue of streamed events.
	EventBuffer int
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
}

// Server serves a Launcher.
type Server struct {
	launcher *agentlauncher.Launcher
	opts     Options
	logger   logging.Logger
}

// New returns a Server for l.
func New(l *agentlauncher.Launcher, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		EventBuffer:     256,
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{launcher: l, opts: opts, logger: opts.Logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleCancelTask)
	mux.HandleFunc("GET /tasks/{id}/events", s.handleTaskEvents)
	mux.HandleFunc("GET /ws/tasks", s.handleTaskWS)

	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.launcher.Tools().Schemas())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, errors.New("task is required"))
		return
	}

	if !req.Stream {
		writeJSON(w, http.StatusOK, s.run(r.Context(), req, nil))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	err := s.stream(r.Context(), req, func(data []byte) error {
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("server.stream.failed", "error", err)
	}
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.launcher.Cancel(id, "cancelled") {
		writeError(w, http.StatusNotFound, errors.New("task not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotImplemented, errors.New("event history disabled"))
		return
	}
	id := r.PathValue("id")
	envs, err := s.opts.History.History(r.Context(), id)
	if err != nil {
		s.logger.Error("server.history.failed", "agent_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(envs) == 0 {
		writeError(w, http.StatusNotFound, errors.New("no events for task"))
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

// run executes req, handing every event of the task to hook.
func (s *Server) run(ctx context.Context, req TaskRequest, hook core.Hook) TaskResponse {
	var optFns []func(o *agentlauncher.RunOptions)
	if req.SessionID != "" {
		optFns = append(optFns, agentlauncher.WithSessionID(req.SessionID))
	}
	if req.TimeoutSeconds > 0 {
		optFns = append(optFns, agentlauncher.WithTimeout(time.Duration(req.TimeoutSeconds)*time.Second))
	}

	idCh := make(chan string, 1)
	optFns = append(optFns, agentlauncher.WithHook(func(ctx context.Context, ev core.Event) error {
		if ev.EventName() == core.TaskCreateEventName {
			select {
			case idCh <- ev.GetAgentID():
			default:
			}
		}
		if hook != nil {
			return hook(ctx, ev)
		}
		return nil
	}))

	s.logger.Info("server.task.start", "session_id", req.SessionID, "stream", req.Stream)
	result, ok := s.launcher.Run(ctx, req.Task, optFns...)

	resp := TaskResponse{Type: ResultType, Result: result, OK: ok}
	select {
	case resp.AgentID = <-idCh:
	default:
	}
	s.logger.Info("server.task.done", "agent_id", resp.AgentID, "ok", ok)
	return resp
}

// stream runs req and writes every event envelope and the final result
// through write. Writes happen on the calling goroutine.
func (s *Server) stream(ctx context.Context, req TaskRequest, write func(data []byte) error) error {
	events := make(chan []byte, s.opts.EventBuffer)
	done := make(chan struct{})
	defer close(done)

	hook := func(_ context.Context, ev core.Event) error {
		data, err := core.MarshalEvent(ev)
		if err != nil {
			return err
		}
		select {
		case events <- data:
		case <-done:
		}
		return nil
	}

	resCh := make(chan TaskResponse, 1)
	go func() { resCh <- s.run(ctx, req, hook) }()

	var writeErr error
	emit := func(data []byte) {
		if writeErr == nil {
			writeErr = write(data)
		}
	}

	for {
		select {
		case data := <-events:
			emit(data)
		case resp := <-resCh:
		drain:
			for {
				select {
				case data := <-events:
					emit(data)
				default:
					break drain
				}
			}
			data, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			emit(data)
			return writeErr
		}
	}
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
