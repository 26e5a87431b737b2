// Package session turns raw presence into session state.
//
// Normalize maps one presence API record to a PresenceSnapshot. Engine.Transition compares
// that snapshot with the cached SessionState of the same entity and decides whether a session
// starts, ends, switches activity, continues, or stays idle. Both are pure; all I/O lives in
// the app package and the adapters.
package session
