// ABOUTME: JSON envelope codec for the WebSocket protocol
// ABOUTME: Decodes inbound frames with shape checks and builds outbound envelopes

package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope types on the wire
const (
	TypeConnectionEstablished = "connection_established"
	TypeToolCall              = "tool_call"
	TypeToolResponse          = "tool_response"
	TypeError                 = "error"
)

// ErrMalformed is returned by Decode for frames that are not a valid envelope
var ErrMalformed = errors.New("malformed envelope")

// Envelope is one JSON message exchanged over a connection.
// ClientID is chosen by the peer and is never used for routing or access control.
type Envelope struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Tool     string          `json:"tool,omitempty"`
	Params   map[string]any  `json:"params,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Decode parses a single frame. Unknown envelope types decode successfully;
// rejecting them is the dispatcher's job.
func Decode(data []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	// Check params is an object before decoding into the typed struct, so the
	// error message names the offending field.
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw, ok := shape["params"]; ok {
		p := bytes.TrimSpace(raw)
		if len(p) == 0 || (p[0] != '{' && !bytes.Equal(p, []byte("null"))) {
			return nil, fmt.Errorf("%w: params must be an object", ErrMalformed)
		}
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// "params":{} and an absent params mean the same thing and encode the same way.
	if len(env.Params) == 0 {
		env.Params = nil
	}

	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if env.Type == TypeToolCall && env.Tool == "" {
		return nil, fmt.Errorf("%w: tool_call requires a tool name", ErrMalformed)
	}

	return &env, nil
}

// Encode serializes an envelope for a single frame.
func Encode(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, errors.New("nil envelope")
	}
	if env.Type == "" {
		return nil, errors.New("envelope type is required")
	}
	return json.Marshal(env)
}

// Established builds the greeting sent once after admission.
func Established(message string) *Envelope {
	return &Envelope{Type: TypeConnectionEstablished, Message: message}
}

// Result builds a successful tool_response.
func Result(tool string, result json.RawMessage) *Envelope {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return &Envelope{Type: TypeToolResponse, Tool: tool, Result: result}
}

// ToolError builds a tool_response carrying an error string.
func ToolError(tool, message string) *Envelope {
	return &Envelope{Type: TypeToolResponse, Tool: tool, Error: message}
}

// Error builds a transport-level error envelope.
func Error(message string) *Envelope {
	return &Envelope{Type: TypeError, Error: message}
}
