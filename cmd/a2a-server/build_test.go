package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/client"
	"github.com/sammcj/go-a2a-core/pkg/config"
	"github.com/sammcj/go-a2a-core/server/auth"
)

func TestResolveCard(t *testing.T) {
	cfg := config.Default()
	card, err := resolveCard(cfg)
	require.NoError(t, err)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "echo", card.Skills[0].ID)
	assert.Nil(t, card.Authentication)

	cfg.Auth = config.AuthConfig{Mode: "jwt", JWTSecret: "k"}
	cfg.AgentCard.Skills = []config.SkillConfig{{ID: "custom", Name: "Custom"}}
	card, err = resolveCard(cfg)
	require.NoError(t, err)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "custom", card.Skills[0].ID)
	require.NotNil(t, card.Authentication)
	assert.Equal(t, []string{"bearer"}, card.Authentication.Schemes)

	cfg.AgentCard.Name = ""
	_, err = resolveCard(cfg)
	assert.Error(t, err)
}

func TestBuildAuthenticator(t *testing.T) {
	a, err := buildAuthenticator(config.AuthConfig{Mode: "none"})
	require.NoError(t, err)
	assert.IsType(t, auth.NoAuth{}, a)

	a, err = buildAuthenticator(config.AuthConfig{Mode: "token", Token: "x"})
	require.NoError(t, err)
	assert.Equal(t, auth.StaticToken{Token: "x"}, a)

	a, err = buildAuthenticator(config.AuthConfig{Mode: "jwt", JWTSecret: "s", JWTIssuer: "me"})
	require.NoError(t, err)
	assert.Equal(t, auth.JWT{Secret: []byte("s"), Issuer: "me"}, a)

	_, err = buildAuthenticator(config.AuthConfig{Mode: "mtls"})
	assert.Error(t, err)
}

func TestPushPolicy(t *testing.T) {
	p := pushPolicy(config.Default().Push)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.InDelta(t, 2.0, p.Multiplier, 0.0001)
}

func TestBuildServerWithSQLiteAndToken(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: "file:cli?mode=memory&cache=shared"}
	cfg.Auth = config.AuthConfig{Mode: "token", Token: "s3cret"}
	require.NoError(t, cfg.Validate())

	srv, err := buildServer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	})

	c, err := client.New(ts.URL, client.WithBearerToken("s3cret"))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := c.SendTask(ctx, &a2a.TaskSendParams{ID: "cli-1", Message: a2a.NewTextMessage(a2a.RoleUser, "hi")})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)

	got, err = c.SendTask(ctx, &a2a.TaskSendParams{ID: "cli-2", Message: a2a.NewTextMessage(a2a.RoleUser, "input")})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateInputRequired, got.Status.State)

	anon, err := client.New(ts.URL)
	require.NoError(t, err)
	_, err = anon.GetTask(ctx, "cli-1", nil)
	assert.ErrorIs(t, err, a2a.ErrUnauthorized(nil))

	card, err := anon.FetchAgentCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bearer"}, card.Authentication.Schemes)
}

func TestConfigInitAndCardCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "server.yaml")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	_, err := config.Load(path)
	require.NoError(t, err)

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "init", path})
	assert.Error(t, root.Execute())

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"card", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, root.Execute())

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(out.Bytes(), &card))
	assert.Equal(t, "Go A2A Server", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "echo", card.Skills[0].ID)
}

func TestCardCommandReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("A2A_AGENT_NAME=From Dotenv\n"), 0o600))
	t.Setenv("A2A_AGENT_NAME", "")
	require.NoError(t, os.Unsetenv("A2A_AGENT_NAME"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"card", "--env-file", envFile})
	require.NoError(t, root.Execute())

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(out.Bytes(), &card))
	assert.Equal(t, "From Dotenv", card.Name)
}
