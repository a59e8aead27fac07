// ABOUTME: Dispatcher turns inbound frames into tool calls and response envelopes
// ABOUTME: Serve drains one connection's inbox in arrival order

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/punchai/punch-gateway/internal/envelope"
	"github.com/punchai/punch-gateway/internal/packs"
)

// InvalidFrameMessage is the error text for frames that are not a valid envelope
const InvalidFrameMessage = "Invalid message format"

// Sender delivers an envelope to one connection. It reports false when the
// connection is no longer established; delivery is best-effort.
type Sender interface {
	Send(ctx context.Context, connectionID string, env *envelope.Envelope) bool
}

// ClientTracker is implemented by senders that want to record the client_id
// a peer claims. Optional.
type ClientTracker interface {
	NoteClientID(connectionID, clientID string)
}

// Dispatcher routes tool_call envelopes through a packs.Router
type Dispatcher struct {
	router *packs.Router
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(router *packs.Router, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		router: router,
		logger: logger.With("component", "dispatch"),
	}
}

// Route handles one raw frame from connectionID and returns the envelope to
// send back to that connection. It never returns nil.
func (d *Dispatcher) Route(ctx context.Context, connectionID string, frame []byte) *envelope.Envelope {
	return d.route(ctx, connectionID, frame, nil)
}

func (d *Dispatcher) route(ctx context.Context, connectionID string, frame []byte, tracker ClientTracker) *envelope.Envelope {
	env, err := envelope.Decode(frame)
	if err != nil {
		d.logger.Debug("malformed frame", "connection_id", connectionID, "error", err)
		return envelope.Error(InvalidFrameMessage)
	}
	if tracker != nil && env.ClientID != "" {
		tracker.NoteClientID(connectionID, env.ClientID)
	}
	return d.handle(ctx, connectionID, env)
}

func (d *Dispatcher) handle(ctx context.Context, connectionID string, env *envelope.Envelope) *envelope.Envelope {
	if env.Type != envelope.TypeToolCall {
		d.logger.Debug("unsupported envelope type", "connection_id", connectionID, "type", env.Type)
		return envelope.Error(fmt.Sprintf("unsupported message type: %s", env.Type))
	}

	d.logger.Debug("tool call received",
		"connection_id", connectionID,
		"client_id", env.ClientID,
		"tool", env.Tool,
	)

	// Once invoked, a handler runs to completion even if the peer disconnects.
	result, err := d.router.RouteToolCall(context.WithoutCancel(ctx), connectionID, env.Tool, env.Params)
	if err != nil {
		if errors.Is(err, packs.ErrToolNotFound) {
			return envelope.ToolError(env.Tool, fmt.Sprintf("unknown tool: %s", env.Tool))
		}
		return envelope.ToolError(env.Tool, err.Error())
	}
	return envelope.Result(env.Tool, result)
}

// Serve processes frames from inbox one at a time and sends each response to
// connectionID. It returns when inbox is closed or ctx is done.
func (d *Dispatcher) Serve(ctx context.Context, connectionID string, inbox <-chan []byte, sender Sender) {
	tracker, _ := sender.(ClientTracker)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-inbox:
			if !ok {
				return
			}

			resp := d.route(ctx, connectionID, frame, tracker)
			if !sender.Send(ctx, connectionID, resp) {
				d.logger.Debug("response dropped, connection gone",
					"connection_id", connectionID,
					"type", resp.Type,
					"tool", resp.Tool,
				)
			}
		}
	}
}
