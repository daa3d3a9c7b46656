// Package gateway talks to the tool gateway: a remote endpoint that exposes
// named tools over JSON-RPC 2.0 ("tools/call").
//
// Two clients live here:
//
//   - Invoker posts a single tools/call request and parses the reply, which
//     may arrive either as a plain JSON document or as a server-sent event
//     stream whose data lines must be concatenated before parsing.
//   - ToolSet opens an MCP session (mcp-go streamable HTTP client) and exposes
//     the tools advertised by the endpoint so a language model can call them.
//
// Neither client retries. Failures are request-scoped and terminal.
package gateway
