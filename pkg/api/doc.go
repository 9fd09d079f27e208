// Package api defines the wire types shared by the relay and its clients.
//
// The relay accepts a [ChatRequest] carrying the conversation transcript and
// answers with newline-delimited JSON, one [StreamEvent] per line. A stream
// always ends with exactly one terminal event: {"done":true} or
// {"error":"..."}.
//
// Core types:
//   - [Turn]: one role-tagged message of the transcript
//   - [ChatRequest]: the POST /api/chat request body
//   - [StreamEvent]: one NDJSON record of the response stream
//   - [APIError]: structured error with a type and message
//
// The package has zero external dependencies and performs no I/O.
package api
