package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantCode     int
		notification bool
	}{
		{name: "valid request", payload: `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"t1"}}`},
		{name: "string id", payload: `{"jsonrpc":"2.0","id":"abc","method":"tasks/get"}`},
		{name: "null id is a request", payload: `{"jsonrpc":"2.0","id":null,"method":"tasks/get"}`},
		{name: "notification", payload: `{"jsonrpc":"2.0","method":"tasks/cancel","params":{"id":"t1"}}`, notification: true},
		{name: "malformed json", payload: `{"jsonrpc":"2.0",`, wantCode: CodeParseError},
		{name: "batch", payload: `[{"jsonrpc":"2.0","id":1,"method":"tasks/get"}]`, wantCode: CodeInvalidRequest},
		{name: "scalar", payload: `42`, wantCode: CodeInvalidRequest},
		{name: "wrong version", payload: `{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`, wantCode: CodeInvalidRequest},
		{name: "missing method", payload: `{"jsonrpc":"2.0","id":1}`, wantCode: CodeInvalidRequest},
		{name: "object id", payload: `{"jsonrpc":"2.0","id":{},"method":"tasks/get"}`, wantCode: CodeInvalidRequest},
		{name: "method not a string", payload: `{"jsonrpc":"2.0","id":1,"method":7}`, wantCode: CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.payload))
			if tt.wantCode != 0 {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.notification, req.IsNotification())
		})
	}
}

func TestParseRequestKeepsIDOnVersionError(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"1.0","id":"r-9","method":"tasks/get"}`))
	require.NotNil(t, err)
	require.NotNil(t, req)
	assert.JSONEq(t, `"r-9"`, string(req.ID))
}

func TestResponseEnvelope(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(nil, ErrMethodNotFound("tasks/nope")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"Method not found: tasks/nope"}}`, string(data))

	data, err = json.Marshal(NewResponse(json.RawMessage(`7`), map[string]string{"ok": "yes"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"ok":"yes"}}`, string(data))
}

func TestDecodeParams(t *testing.T) {
	var send TaskSendParams
	err := DecodeParams(json.RawMessage(`{"id":"t1","message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`), &send)
	require.Nil(t, err)
	assert.Equal(t, "hi", send.Message.Parts.Text())

	tests := []struct {
		name string
		raw  string
	}{
		{"missing params", ``},
		{"null params", `null`},
		{"missing id", `{"message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`},
		{"bad role", `{"id":"t1","message":{"role":"robot","parts":[{"type":"text","text":"hi"}]}}`},
		{"no parts", `{"id":"t1","message":{"role":"user","parts":[]}}`},
		{"unknown part", `{"id":"t1","message":{"role":"user","parts":[{"type":"video"}]}}`},
		{"negative history", `{"id":"t1","historyLength":-1,"message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`},
		{"bad push url", `{"id":"t1","pushNotification":{"url":"not a url"},"message":{"role":"user","parts":[{"type":"text","text":"hi"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p TaskSendParams
			err := DecodeParams(json.RawMessage(tt.raw), &p)
			require.NotNil(t, err)
			assert.Equal(t, CodeInvalidParams, err.Code)
		})
	}
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))
	assert.Equal(t, CodeInternalError, AsError(assert.AnError).Code)

	wrapped := WrapErrorf(ErrTaskNotFound("t1"), CodeTaskNotFound, "lookup failed")
	assert.Equal(t, CodeTaskNotFound, AsError(wrapped).Code)
	assert.ErrorIs(t, wrapped, ErrTaskNotFound("other"))
}
