package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/server/auth"
)

// DefaultMaxBodyBytes bounds the size of a JSON-RPC request body.
const DefaultMaxBodyBytes = 4 << 20

// HTTPHandler serves the A2A JSON-RPC endpoint. Unary methods answer with a
// JSON body, streaming methods switch the response to server-sent events.
type HTTPHandler struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
	maxBody    int64
}

// NewHTTPHandler creates an HTTPHandler. Credentials are read from the
// request context, see middleware.Credentials.
func NewHTTPHandler(d *Dispatcher, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{dispatcher: d, logger: logger, maxBody: DefaultMaxBodyBytes}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONRPCResponse(w, a2a.NewErrorResponse(nil, a2a.ErrInvalidRequest("Method not allowed")), http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONRPCResponse(w, a2a.NewErrorResponse(nil, a2a.ErrInvalidRequest("Request body too large")), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONRPCResponse(w, a2a.NewErrorResponse(nil, a2a.ErrParseError(err)), http.StatusOK)
		return
	}

	creds, _ := auth.FromContext(r.Context())
	reply := h.dispatcher.Dispatch(r.Context(), creds, body)
	switch {
	case reply.None():
		w.WriteHeader(http.StatusNoContent)
	case reply.Stream != nil:
		serveSSE(w, r, reply, h.logger)
	default:
		writeJSONRPCResponse(w, reply.Response, httpStatus(reply.Response))
	}
}

// httpStatus maps a response to its HTTP status. JSON-RPC errors travel with
// 200 except for failed authentication.
func httpStatus(resp *a2a.JSONRPCResponse) int {
	if resp.Error != nil && resp.Error.Code == a2a.CodeUnauthorized {
		return http.StatusUnauthorized
	}
	return http.StatusOK
}

// writeJSONRPCResponse writes a JSON-RPC response.
func writeJSONRPCResponse(w http.ResponseWriter, resp *a2a.JSONRPCResponse, status int) {
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		// If marshalling fails, return a simple error
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonResp)
}
