package domain

import "fmt"

// PresencePolicy decides which presence types count as active participation.
type PresencePolicy string

const (
	PresencePolicyGame         PresencePolicy = "game"           // in game only
	PresencePolicyGameOrStudio PresencePolicy = "game-or-studio" // in game or in studio
	PresencePolicyOnline       PresencePolicy = "online"         // website, game or studio
)

// ParsePresencePolicy converts a configuration string to a PresencePolicy.
func ParsePresencePolicy(s string) (PresencePolicy, error) {
	switch p := PresencePolicy(s); p {
	case PresencePolicyGame, PresencePolicyGameOrStudio, PresencePolicyOnline:
		return p, nil
	default:
		return "", fmt.Errorf("presence policy %q: %w", s, ErrUnknownPolicy)
	}
}

// Active reports whether t counts as active participation under p.
func (p PresencePolicy) Active(t PresenceType) bool {
	switch p {
	case PresencePolicyGame:
		return t == PresenceInGame
	case PresencePolicyGameOrStudio:
		return t == PresenceInGame || t == PresenceInStudio
	case PresencePolicyOnline:
		return t == PresenceOnline || t == PresenceInGame || t == PresenceInStudio
	default:
		return false
	}
}

// SwitchPolicy decides when two tracked snapshots belong to different activities.
type SwitchPolicy string

const (
	// SwitchByID compares activity IDs. Two unidentified activities are the same activity.
	SwitchByID SwitchPolicy = "id"
	// SwitchByIDOrName additionally switches when the activity name changes.
	SwitchByIDOrName SwitchPolicy = "id-or-name"
)

// ParseSwitchPolicy converts a configuration string to a SwitchPolicy.
func ParseSwitchPolicy(s string) (SwitchPolicy, error) {
	switch p := SwitchPolicy(s); p {
	case SwitchByID, SwitchByIDOrName:
		return p, nil
	default:
		return "", fmt.Errorf("switch policy %q: %w", s, ErrUnknownPolicy)
	}
}
