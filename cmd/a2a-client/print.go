package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sammcj/go-a2a-core/a2a"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) task(t *a2a.Task) error {
	if p.format == "json" {
		return p.json(t)
	}
	fmt.Fprintf(p.w, "Task %s: %s\n", t.ID, t.Status.State)
	if t.SessionID != "" {
		fmt.Fprintf(p.w, "  session: %s\n", t.SessionID)
	}
	if t.Status.Message != nil {
		fmt.Fprintf(p.w, "  status message: %s\n", messageText(*t.Status.Message))
	}
	for _, m := range t.History {
		fmt.Fprintf(p.w, "  [%s] %s\n", m.Role, messageText(m))
	}
	for _, a := range t.Artifacts {
		fmt.Fprintf(p.w, "  artifact %d%s: %s\n", a.Index, nameSuffix(a.Name), partsText(a.Parts))
	}
	return nil
}

func (p *printer) event(ev a2a.Event) error {
	if p.format == "json" {
		return p.json(ev)
	}
	switch e := ev.(type) {
	case *a2a.TaskStatusUpdateEvent:
		line := fmt.Sprintf("status: %s", e.Status.State)
		if e.Status.Message != nil {
			line += " - " + messageText(*e.Status.Message)
		}
		if e.Final {
			line += " (final)"
		}
		fmt.Fprintln(p.w, line)
	case *a2a.TaskArtifactUpdateEvent:
		fmt.Fprintf(p.w, "artifact %d%s: %s\n", e.Artifact.Index, nameSuffix(e.Artifact.Name), partsText(e.Artifact.Parts))
	}
	return nil
}

func (p *printer) stream(events <-chan a2a.Event, errs <-chan error) error {
	for ev := range events {
		if err := p.event(ev); err != nil {
			return err
		}
	}
	return <-errs
}

func (p *printer) card(card *a2a.AgentCard) error {
	if p.format == "json" {
		return p.json(card)
	}
	fmt.Fprintf(p.w, "%s (version %s)\n", card.Name, card.Version)
	if card.Description != "" {
		fmt.Fprintf(p.w, "  %s\n", card.Description)
	}
	fmt.Fprintf(p.w, "  url: %s\n", card.URL)
	fmt.Fprintf(p.w, "  streaming: %t, push notifications: %t\n", card.Capabilities.Streaming, card.Capabilities.PushNotifications)
	if card.Authentication != nil && len(card.Authentication.Schemes) > 0 {
		fmt.Fprintf(p.w, "  authentication: %s\n", strings.Join(card.Authentication.Schemes, ", "))
	}
	for _, s := range card.Skills {
		fmt.Fprintf(p.w, "  skill %s: %s", s.ID, s.Name)
		if s.Description != "" {
			fmt.Fprintf(p.w, " - %s", s.Description)
		}
		fmt.Fprintln(p.w)
	}
	return nil
}

func (p *printer) pushConfig(cfg *a2a.TaskPushNotificationConfig) error {
	if p.format == "json" {
		return p.json(cfg)
	}
	fmt.Fprintf(p.w, "Task %s pushes to %s\n", cfg.ID, cfg.PushNotificationConfig.URL)
	return nil
}

func messageText(m a2a.Message) string {
	return partsText(m.Parts)
}

func partsText(parts a2a.Parts) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, describePart(part))
	}
	return strings.Join(out, " ")
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}
