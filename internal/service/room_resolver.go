package service

import (
	"strings"

	"github.com/google/uuid"
)

// roomNamespace seeds the deterministic id derivation for property rooms so
// every node resolves prop_/temp_ aliases to the same canonical UUID.
var roomNamespace = uuid.MustParse("5d1a3b5e-9c47-4f08-8a6a-1c2f38a7e9b0")

const (
	propertyAliasPrefix = "prop_"
	tempAliasPrefix     = "temp_"
)

// RoomRef is the result of resolving a client-supplied room identifier.
type RoomRef struct {
	// RoomID is the canonical UUID of the room.
	RoomID string
	// PropertyID is set when the identifier was a property alias.
	PropertyID string
}

// IsPropertyAlias reports whether the reference came from a prop_/temp_ alias.
func (r RoomRef) IsPropertyAlias() bool {
	return r.PropertyID != ""
}

// ResolveRoomID maps a client-supplied identifier to a canonical room reference.
// Three forms are accepted:
//
//	<uuid>                     an existing room id, passed through
//	prop_<propertyID>          the canonical room for a property
//	temp_<propertyID>_<nonce>  a client-generated placeholder for the same room
//
// Property aliases resolve to a deterministic UUID derived from the property id,
// so concurrent callers converge on a single room.
func ResolveRoomID(raw string) (RoomRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RoomRef{}, ErrInvalidRoomID
	}

	if id, err := uuid.Parse(raw); err == nil {
		return RoomRef{RoomID: id.String()}, nil
	}

	if propertyID, ok := strings.CutPrefix(raw, propertyAliasPrefix); ok {
		if propertyID == "" {
			return RoomRef{}, ErrInvalidRoomID
		}
		return propertyRef(propertyID), nil
	}

	if rest, ok := strings.CutPrefix(raw, tempAliasPrefix); ok {
		// The nonce follows the final underscore; the property id may itself
		// contain underscores.
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 {
			return RoomRef{}, ErrInvalidRoomID
		}
		propertyID := rest[:idx]
		return propertyRef(propertyID), nil
	}

	return RoomRef{}, ErrInvalidRoomID
}

func propertyRef(propertyID string) RoomRef {
	return RoomRef{
		RoomID:     uuid.NewSHA1(roomNamespace, []byte(propertyID)).String(),
		PropertyID: propertyID,
	}
}

// PropertyRoomID returns the canonical room id for a property.
func PropertyRoomID(propertyID string) string {
	return uuid.NewSHA1(roomNamespace, []byte(propertyID)).String()
}
