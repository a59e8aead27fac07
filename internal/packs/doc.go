// Package packs provides the tool registry and router shared by every front end.
//
// # Overview
//
// A tool is a named, schema-described operation that connected peers can
// invoke. Tools are grouped into built-in packs (see internal/builtins) and
// registered once at startup. Tool names are globally unique: registering a
// pack whose tool name already exists fails with ErrToolCollision and the
// gateway refuses to start.
//
// # Schemas
//
// Each tool's input schema is reflected from a tagged Go struct with
// invopop/jsonschema:
//
//	type addTaskInput struct {
//		Title    string  `json:"title" jsonschema:"description=Task title"`
//		Priority *string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
//	}
//
// Fields without omitempty are required. Validation is shallow: required
// fields present, primitive types match, enums respected. Unknown fields are
// ignored.
//
// # Tool Routing
//
// Router.RouteToolCall:
//
//  1. Looks up the tool by name (ErrToolNotFound if absent)
//  2. Validates params against the schema (ErrInvalidParams on violation)
//  3. Invokes the handler, recovering panics as errors
//
// The WebSocket dispatcher and the MCP endpoint both route through the same
// Router, so the tool catalogue is identical on every surface.
package packs
