// Package render turns a conversation timeline into a standalone HTML
// transcript.
//
// Message bodies are treated as GitHub-flavored markdown and converted with
// goldmark. Raw HTML inside a message is dropped, and every other field goes
// through html/template escaping, so a transcript is safe to open in a
// browser whatever the agent replied.
//
// The chat client uses WriteHTML for /export; the gateway serves the same
// document from GET /api/transcript.
package render
