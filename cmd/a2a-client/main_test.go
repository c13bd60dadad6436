package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/plugins"
	"github.com/sammcj/go-a2a-core/server"
)

func newAgent(t *testing.T) string {
	t.Helper()
	card := &a2a.AgentCard{
		Name:         "CLI Agent",
		URL:          "http://localhost/a2a",
		Version:      "1.0.0",
		Capabilities: a2a.AgentCapabilities{Streaming: true, PushNotifications: true},
		Skills:       []a2a.AgentSkill{plugins.EchoSkill()},
	}
	s, err := server.NewServer(
		server.WithAgentCard(card),
		server.WithTaskHandler(plugins.Echo()),
		server.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	})
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCardCommand(t *testing.T) {
	url := newAgent(t)

	out, err := run(t, "--url", url, "card")
	require.NoError(t, err)
	assert.Contains(t, out, "CLI Agent (version 1.0.0)")
	assert.Contains(t, out, "skill echo: Echo")

	out, err = run(t, "--url", url, "-o", "json", "card")
	require.NoError(t, err)
	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal([]byte(out), &card))
	assert.Equal(t, "CLI Agent", card.Name)
}

func TestSendGetCancel(t *testing.T) {
	url := newAgent(t)

	out, err := run(t, "--url", url, "send", "--task-id", "t1", "hello", "world")
	require.NoError(t, err)
	assert.Contains(t, out, "Task t1: completed")
	assert.Contains(t, out, "artifact 0 (echo): hello world")

	out, err = run(t, "--url", url, "-o", "json", "get", "t1", "--history", "1")
	require.NoError(t, err)
	var got a2a.Task
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	assert.Len(t, got.History, 1)

	_, err = run(t, "--url", url, "cancel", "t1")
	assert.ErrorIs(t, err, a2a.ErrInvalidStateTransition("", "", ""))

	_, err = run(t, "--url", url, "get", "missing")
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound(""))
}

func TestSendStreamAndSubscribe(t *testing.T) {
	url := newAgent(t)

	out, err := run(t, "--url", url, "send", "--stream", "--task-id", "s1", "streamed")
	require.NoError(t, err)
	assert.Contains(t, out, "status: submitted")
	assert.Contains(t, out, "status: working")
	assert.Contains(t, out, "artifact 0 (echo): streamed")
	assert.Contains(t, out, "status: completed - Echo: streamed (final)")

	out, err = run(t, "--url", url, "subscribe", "s1")
	require.NoError(t, err)
	assert.Equal(t, "status: completed - Echo: streamed (final)\n", out)
}

func TestPushCommands(t *testing.T) {
	url := newAgent(t)

	out, err := run(t, "--url", url, "push", "set", "p1", "https://hooks.example.com/a2a", "--push-token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Task p1 pushes to https://hooks.example.com/a2a\n", out)

	out, err = run(t, "--url", url, "-o", "json", "push", "get", "p1")
	require.NoError(t, err)
	var cfg a2a.TaskPushNotificationConfig
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "tok", cfg.PushNotificationConfig.Token)
}

func TestGlobalOptionValidation(t *testing.T) {
	_, err := run(t, "--output", "xml", "card")
	assert.Error(t, err)

	_, err = run(t, "--header", "no-colon", "card")
	assert.Error(t, err)

	o := &globalOptions{url: "http://localhost:1", output: "json", headers: []string{"X-Trace: 42"}, token: "t"}
	c, err := o.client()
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestDescribePart(t *testing.T) {
	assert.Equal(t, "hi", describePart(a2a.TextPart{Text: "hi"}))
	assert.Equal(t, "[file: report.pdf application/pdf]", describePart(a2a.FilePart{File: a2a.FileContent{Name: "report.pdf", MimeType: "application/pdf"}}))
	assert.Equal(t, "[data: 2 fields]", describePart(a2a.DataPart{Data: map[string]any{"a": 1, "b": 2}}))
}
