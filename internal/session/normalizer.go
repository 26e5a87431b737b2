package session

import (
	"strings"

	"github.com/pscheid92/playtime/internal/domain"
)

const (
	// UnidentifiedActivity names an activity that is known to be happening but cannot be identified.
	UnidentifiedActivity = "UnidentifiedActivity"
	// OfflineActivity names the idle snapshot.
	OfflineActivity = "Offline"
)

var genericLocations = map[string]struct{}{
	"":        {},
	"website": {},
	"unknown": {},
}

func isGenericLocation(loc string) bool {
	_, ok := genericLocations[strings.ToLower(strings.TrimSpace(loc))]
	return ok
}

// ActivityID returns the most specific non-zero identifier of raw, or zero.
func ActivityID(raw domain.RawPresence) domain.ActivityID {
	for _, id := range []*domain.ActivityID{raw.UniverseID, raw.RootPlaceID, raw.PlaceID} {
		if id != nil && *id != 0 {
			return *id
		}
	}
	return 0
}

// Normalize maps a raw presence record to a PresenceSnapshot. names is keyed by universe ID
// and may be nil; a missing name falls back to the location text or a sentinel.
func Normalize(raw domain.RawPresence, names map[domain.ActivityID]string, policy domain.PresencePolicy) domain.PresenceSnapshot {
	id := ActivityID(raw)
	location := strings.TrimSpace(raw.LastLocation)
	usableLocation := !isGenericLocation(location)

	tracking := policy.Active(raw.PresenceType) && (id != 0 || usableLocation)

	name := ""
	if raw.UniverseID != nil {
		name = names[*raw.UniverseID]
	}
	switch {
	case name != "":
	case usableLocation:
		name = location
	case tracking:
		name = UnidentifiedActivity
	default:
		name = OfflineActivity
	}

	return domain.PresenceSnapshot{
		IsTracking:   tracking,
		ActivityID:   id,
		ActivityName: name,
	}
}

// UniverseIDs collects the distinct non-zero universe IDs of active records, in first-seen order.
// These are the only identifiers the games API can resolve to a name.
func UniverseIDs(raws []domain.RawPresence, policy domain.PresencePolicy) []domain.ActivityID {
	seen := make(map[domain.ActivityID]struct{})
	var ids []domain.ActivityID
	for _, raw := range raws {
		if !policy.Active(raw.PresenceType) || raw.UniverseID == nil || *raw.UniverseID == 0 {
			continue
		}
		if _, ok := seen[*raw.UniverseID]; ok {
			continue
		}
		seen[*raw.UniverseID] = struct{}{}
		ids = append(ids, *raw.UniverseID)
	}
	return ids
}
