package server

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/server/auth"
	"github.com/sammcj/go-a2a-core/server/stream"
)

// Reply is the outcome of dispatching one JSON-RPC payload. Exactly one of
// Response and Stream is set, or neither for a notification.
type Reply struct {
	Response *a2a.JSONRPCResponse
	Stream   *stream.Subscription
	ID       json.RawMessage // request id, for wrapping stream events
}

// None reports whether nothing should be sent back.
func (r Reply) None() bool { return r.Response == nil && r.Stream == nil }

// Dispatcher turns JSON-RPC payloads into TaskManager calls. It is shared by
// every transport.
type Dispatcher struct {
	tm     TaskManager
	authn  auth.Authenticator
	logger *zap.Logger
	tracer trace.Tracer
}

// NewDispatcher creates a Dispatcher. A nil authenticator allows everyone.
func NewDispatcher(tm TaskManager, authn auth.Authenticator, logger *zap.Logger) *Dispatcher {
	if authn == nil {
		authn = auth.NoAuth{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tm:     tm,
		authn:  authn,
		logger: logger,
		tracer: otel.GetTracerProvider().Tracer(tracerName),
	}
}

// Dispatch parses payload, authenticates the caller and routes the call.
// Protocol failures are returned as error responses, never as Go errors.
func (d *Dispatcher) Dispatch(ctx context.Context, creds auth.Credentials, payload []byte) Reply {
	ctx, span := d.tracer.Start(ctx, "a2a.dispatch")
	defer span.End()

	req, perr := a2a.ParseRequest(payload)
	if perr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		recordError(span, perr)
		d.logger.Debug("rejected malformed request", zap.Int("code", perr.Code), zap.String("message", perr.Message))
		return Reply{Response: a2a.NewErrorResponse(id, perr)}
	}

	span.SetAttributes(attribute.String("a2a.method", req.Method))
	logger := d.logger.With(zap.String("method", req.Method))
	notification := req.IsNotification()

	if !a2a.KnownMethod(req.Method) {
		if notification {
			return Reply{}
		}
		err := a2a.ErrMethodNotFound(req.Method)
		recordError(span, err)
		return Reply{Response: a2a.NewErrorResponse(req.ID, err)}
	}
	if notification && a2a.IsStreamingMethod(req.Method) {
		logger.Debug("ignoring streaming notification")
		return Reply{}
	}

	if err := d.authn.Authenticate(ctx, creds); err != nil {
		logger.Debug("caller not authenticated", zap.String("scheme", creds.Scheme), zap.Error(err))
		if notification {
			return Reply{}
		}
		aerr := a2a.ErrUnauthorized(err)
		recordError(span, aerr)
		return Reply{Response: a2a.NewErrorResponse(req.ID, aerr)}
	}

	logger.Debug("dispatching request", zap.Bool("notification", notification))
	result, sub, err := d.route(ctx, req)
	if notification {
		if sub != nil {
			sub.Close()
		}
		return Reply{}
	}
	if err != nil {
		aerr := a2a.AsError(err)
		recordError(span, aerr)
		if aerr.Code == a2a.CodeInternalError {
			logger.Error("request failed", zap.Error(err))
		}
		return Reply{Response: a2a.NewErrorResponse(req.ID, aerr)}
	}
	if sub != nil {
		return Reply{Stream: sub, ID: req.ID}
	}
	return Reply{Response: a2a.NewResponse(req.ID, result)}
}

func (d *Dispatcher) route(ctx context.Context, req *a2a.JSONRPCRequest) (any, *stream.Subscription, error) {
	switch req.Method {
	case a2a.MethodSendTask:
		var params a2a.TaskSendParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		t, err := d.tm.OnSendTask(ctx, &params)
		return t, nil, err

	case a2a.MethodGetTask:
		var params a2a.TaskQueryParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		t, err := d.tm.OnGetTask(ctx, &params)
		return t, nil, err

	case a2a.MethodCancelTask:
		var params a2a.TaskIDParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		t, err := d.tm.OnCancelTask(ctx, &params)
		return t, nil, err

	case a2a.MethodSendTaskSubscribe:
		var params a2a.TaskSendParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		sub, err := d.tm.OnSendTaskSubscribe(ctx, &params)
		return nil, sub, err

	case a2a.MethodResubscribe:
		var params a2a.TaskIDParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		sub, err := d.tm.OnResubscribeToTask(ctx, &params)
		return nil, sub, err

	case a2a.MethodSetPushNotification:
		var params a2a.TaskPushNotificationConfig
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		cfg, err := d.tm.OnSetTaskPushNotification(ctx, &params)
		return cfg, nil, err

	case a2a.MethodGetPushNotification:
		var params a2a.TaskIDParams
		if err := a2a.DecodeParams(req.Params, &params); err != nil {
			return nil, nil, err
		}
		cfg, err := d.tm.OnGetTaskPushNotification(ctx, &params)
		return cfg, nil, err
	}
	return nil, nil, a2a.ErrMethodNotFound(req.Method)
}
