// Package auth provides admission authentication for punch-gateway.
//
// # Credentials
//
// A credential is an opaque API key. The Gate holds a static set loaded at
// startup from configuration:
//
//   - auth.api_keys: plain keys (also the API_KEYS environment variable,
//     comma separated)
//   - auth.api_key_hashes: bcrypt hashes of keys, for deployments that do
//     not want plain keys in config files
//
// A key is globally valid or globally invalid. There is no rotation, expiry,
// or per-key scoping.
//
// # Presenting a Credential
//
// Clients send the key in the X-API-Key header when opening the WebSocket.
// "Authorization: Bearer <key>" is accepted as a fallback for clients that
// cannot set custom headers.
//
// # HTTP Middleware
//
//	mux.Handle("/mcp", auth.Middleware(gate)(mcpHandler))
//
// Rejected requests receive 401 with body {"error":"Unauthorized"}. Accepted
// requests carry an AuthContext with a short key fingerprint for logging.
package auth
