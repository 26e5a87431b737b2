// Package app provides the application service layer.
//
// Orchestrates the tracking tick: lock, cache read, presence fetch, name resolution, per-entity
// transitions, log appends and cache write. Depends on domain ports, not concrete adapters.
package app
