package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsWriter is the write half of a WebSocket connection.
type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleTaskWS reads one TaskRequest from the connection, streams the events
// of that task and closes the connection after the result envelope.
func (s *Server) handleTaskWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()

	var req TaskRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		_ = conn.Close(websocket.StatusUnsupportedData, "invalid task request")
		return
	}
	if req.Task == "" {
		_ = conn.Close(websocket.StatusPolicyViolation, "task is required")
		return
	}
	req.Stream = true

	if err := s.streamTo(ctx, req, conn); err != nil {
		s.logger.Warn("server.ws.failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func (s *Server) streamTo(ctx context.Context, req TaskRequest, writer wsWriter) error {
	err := s.stream(ctx, req, func(data []byte) error {
		return writer.Write(ctx, websocket.MessageText, data)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
