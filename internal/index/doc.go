// Package index lists past conversations for selection.
//
// The index is a pure function of the message history: Build walks rows in
// creation order and keeps the first human message of every session as its
// title. Loading it never touches the active session, so it can run while a
// request is in flight.
package index
