package a2a

import (
	"bytes"
	"encoding/json"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// Method names of the A2A JSON-RPC surface.
const (
	MethodSendTask            = "tasks/send"
	MethodGetTask             = "tasks/get"
	MethodCancelTask          = "tasks/cancel"
	MethodSendTaskSubscribe   = "tasks/sendSubscribe"
	MethodResubscribe         = "tasks/resubscribe"
	MethodSetPushNotification = "tasks/pushNotification/set"
	MethodGetPushNotification = "tasks/pushNotification/get"
)

var knownMethods = map[string]bool{
	MethodSendTask:            true,
	MethodGetTask:             true,
	MethodCancelTask:          true,
	MethodSendTaskSubscribe:   true,
	MethodResubscribe:         true,
	MethodSetPushNotification: true,
	MethodGetPushNotification: true,
}

// KnownMethod reports whether method is part of the A2A surface.
func KnownMethod(method string) bool {
	return knownMethods[method]
}

// IsStreamingMethod reports whether method answers with an event stream.
func IsStreamingMethod(method string) bool {
	return method == MethodSendTaskSubscribe || method == MethodResubscribe
}

// JSONRPCRequest represents a JSON-RPC request or notification. ID keeps
// the raw token so an absent id (notification) can be told apart from an
// explicit null.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id and expects no reply.
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

// JSONRPCResponse represents a JSON-RPC response object.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

// NewResponse builds a success response for id.
func NewResponse(id json.RawMessage, result any) *JSONRPCResponse {
	if len(id) == 0 {
		id = nullID
	}
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error response for id; a missing id is sent as null.
func NewErrorResponse(id json.RawMessage, err *Error) *JSONRPCResponse {
	if len(id) == 0 {
		id = nullID
	}
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: err.ToJSONRPCError()}
}

// ParseRequest classifies a wire payload. Malformed JSON is a ParseError;
// well-formed JSON that is not a single request object is an
// InvalidRequest. Whatever id could be recovered is returned alongside the
// error so the reply can still be correlated.
func ParseRequest(data []byte) (*JSONRPCRequest, *Error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, ErrParseError(nil)
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, ErrInvalidRequest("Batch requests are not supported")
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidRequest("Request must be a JSON object")
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, WrapError(err, CodeInvalidRequest, "Invalid Request")
	}
	if !validID(req.ID) {
		req.ID = nil
		return &req, ErrInvalidRequest("Request id must be a string, number or null")
	}
	if req.JSONRPC != JSONRPCVersion {
		return &req, ErrInvalidRequest("Invalid JSON-RPC version")
	}
	if req.Method == "" {
		return &req, ErrInvalidRequest("Method is required")
	}
	return &req, nil
}

func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch id[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// DecodeParams unmarshals raw params into dst and validates the result.
// Any failure is reported as InvalidParams.
func DecodeParams(raw json.RawMessage, dst any) *Error {
	if len(raw) == 0 || bytes.Equal(raw, nullID) {
		return ErrInvalidParams("params are required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return WrapError(err, CodeInvalidParams, "Invalid params: "+err.Error())
	}
	if err := Validate(dst); err != nil {
		return AsError(err)
	}
	return nil
}
