package domain

import "context"

// PresenceType is the Roblox userPresenceType code.
type PresenceType int

const (
	PresenceOffline   PresenceType = 0
	PresenceOnline    PresenceType = 1 // on the website or app, not in an experience
	PresenceInGame    PresenceType = 2
	PresenceInStudio  PresenceType = 3
	PresenceInvisible PresenceType = 4
)

func (p PresenceType) String() string {
	switch p {
	case PresenceOffline:
		return "offline"
	case PresenceOnline:
		return "online"
	case PresenceInGame:
		return "in_game"
	case PresenceInStudio:
		return "in_studio"
	case PresenceInvisible:
		return "invisible"
	default:
		return "unknown"
	}
}

// RawPresence is one user entry of the presence API response.
// Identifier fields are nil when the API omits them or returns null.
type RawPresence struct {
	UserID       EntityID     `json:"userId"`
	PresenceType PresenceType `json:"userPresenceType"`
	LastLocation string       `json:"lastLocation"`
	UniverseID   *ActivityID  `json:"universeId"`
	RootPlaceID  *ActivityID  `json:"rootPlaceId"`
	PlaceID      *ActivityID  `json:"placeId"`
}

// PresenceSource fetches raw presence for a batch of users in one call.
type PresenceSource interface {
	FetchPresence(ctx context.Context, ids []EntityID) ([]RawPresence, error)
}

// NameResolver maps universe IDs to game names. Missing IDs are simply absent from the result.
type NameResolver interface {
	ResolveNames(ctx context.Context, ids []ActivityID) (map[ActivityID]string, error)
}
