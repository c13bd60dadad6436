package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
)

// SSE event name sent when the server ends a stream early because the
// subscriber fell behind.
const sseErrorEvent = "error"

// serveSSE streams the subscription of reply as server-sent events. Each
// event's data is a JSON-RPC response carrying the request id and the event
// as result. The stream ends when the subscription closes or the client
// goes away.
func serveSSE(w http.ResponseWriter, r *http.Request, reply Reply, logger *zap.Logger) {
	sub := reply.Stream
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONRPCResponse(w, a2a.NewErrorResponse(reply.ID, a2a.ErrUnsupportedOperation("streaming over this connection")), http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger = logger.With(zap.String("task_id", sub.TaskID()))
	seq := 0
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Dropped() {
					logger.Warn("stream subscriber dropped")
					err := a2a.NewError(a2a.CodeInternalError, "Stream subscriber fell behind and was dropped")
					seq++
					_ = writeSSEEvent(w, seq, sseErrorEvent, a2a.NewErrorResponse(reply.ID, err))
					flusher.Flush()
				}
				return
			}
			seq++
			if err := writeSSEEvent(w, seq, ev.EventType(), a2a.NewResponse(reply.ID, ev)); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("stream client disconnected")
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, seq int, event string, resp *a2a.JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, data)
	return err
}
