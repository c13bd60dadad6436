package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/sammcj/go-a2a-core/a2a"
)

// Maximum size of a single SSE line.
const maxSSELineBytes = 1 << 20

// sseEvent represents an event received from an SSE stream.
type sseEvent struct {
	ID    string
	Event string
	Data  string
}

// SendTaskSubscribe sends a message and streams the task's events. The
// events channel closes after the final event, when ctx is done, or on
// error. At most one error is delivered on the error channel, which is
// closed after the events channel.
func (c *Client) SendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (<-chan a2a.Event, <-chan error) {
	return c.subscribe(ctx, a2a.MethodSendTaskSubscribe, params)
}

// Resubscribe reattaches to the event stream of an existing task.
func (c *Client) Resubscribe(ctx context.Context, taskID string) (<-chan a2a.Event, <-chan error) {
	return c.subscribe(ctx, a2a.MethodResubscribe, a2a.TaskIDParams{ID: taskID})
}

func (c *Client) subscribe(ctx context.Context, method string, params any) (<-chan a2a.Event, <-chan error) {
	events := make(chan a2a.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(events)
		if err := c.stream(ctx, method, params, events); err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()
	return events, errs
}

func (c *Client) stream(ctx context.Context, method string, params any, out chan<- a2a.Event) error {
	id, body, err := newRequest(method, params)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		// Errors before the stream starts come back as a plain JSON-RPC response.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if err := decodeResponse(data, nil, nil); err != nil {
			return err
		}
		return fmt.Errorf("unexpected response: status %d, content type %q", resp.StatusCode, mediaType)
	}

	final := false
	err = readSSE(resp.Body, func(ev sseEvent) (bool, error) {
		var result json.RawMessage
		if err := decodeResponse([]byte(ev.Data), id, &result); err != nil {
			return false, err
		}
		event, err := a2a.DecodeEvent(result)
		if err != nil {
			return false, fmt.Errorf("failed to decode %s event: %w", ev.Event, err)
		}
		select {
		case out <- event:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		final = event.IsFinal()
		return !final, nil
	})
	if err == nil && !final {
		return fmt.Errorf("event stream ended before a final event: %w", io.ErrUnexpectedEOF)
	}
	return err
}

// readSSE parses server-sent events from r and calls fn for each one until
// fn returns false, an error occurs, or the stream ends.
func readSSE(r io.Reader, fn func(sseEvent) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)

	var cur sseEvent
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) == 0 {
				cur = sseEvent{}
				continue
			}
			cur.Data = strings.Join(data, "\n")
			more, err := fn(cur)
			if err != nil || !more {
				return err
			}
			cur, data = sseEvent{}, data[:0]
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			cur.ID = value
		case "event":
			cur.Event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil
}
