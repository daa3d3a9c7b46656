// Package llm runs chat completions against an OpenAI-compatible API.
//
// Generate sends a system instruction and a prompt, lets the model call the
// supplied tools for a bounded number of rounds, and returns the final text
// together with the token usage accumulated over every round. Tool schemas
// and calls come from the tool gateway (see FromToolSet), so the tool-use
// loop is invisible to callers.
//
// The caller's credential is used per request; no key is held by the client.
package llm
