// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (tracking.go, presence.go, store.go, policy.go, errors.go) hold the
// shared types and the ports adapters implement. No implementation code beyond small value helpers.
package domain
