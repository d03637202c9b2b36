package models

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUserID is the shared identity for requests without a valid
// X-User-ID header. Anonymous interactions pool under this one id.
var AnonymousUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// ActionType enumerates the interaction kinds recorded by the ledger.
type ActionType string

const (
	ActionSaved     ActionType = "SAVED"
	ActionArchived  ActionType = "ARCHIVED"
	ActionAttending ActionType = "ATTENDING"
	ActionShared    ActionType = "SHARED"
	ActionOpened    ActionType = "OPENED"
	ActionUnsaved   ActionType = "UNSAVED"
)

// Valid reports whether the action type is one the ledger accepts.
func (a ActionType) Valid() bool {
	switch a {
	case ActionSaved, ActionArchived, ActionAttending, ActionShared, ActionOpened, ActionUnsaved:
		return true
	}
	return false
}

// UserEventStatus holds the per-(user, event) interaction record. At most
// one row exists per pair; counters never go negative.
type UserEventStatus struct {
	UserID              uuid.UUID `json:"userId"`
	EventID             int64     `json:"eventId"`
	Saved               bool      `json:"saved"`
	Archived            bool      `json:"archived"`
	Attending           bool      `json:"attending"`
	Shared              bool      `json:"shared"`
	SavedCount          int       `json:"savedCount"`
	SharedCount         int       `json:"sharedCount"`
	OpenedCount         int       `json:"openedCount"`
	LastInteractionDate time.Time `json:"lastInteractionDate"`
}

// InteractionAction is an append-only audit record. It is written on every
// state-changing action and never read back by the feed.
type InteractionAction struct {
	UserID     uuid.UUID  `json:"userId"`
	EventID    int64      `json:"eventId"`
	ActionType ActionType `json:"actionType"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// InteractionCounts is the global per-event aggregate. It is a derived
// projection, upserted best-effort alongside ledger writes and rebuildable
// from interaction_actions.
type InteractionCounts struct {
	EventID       int64     `json:"eventId"`
	SavedCount    int       `json:"savedCount"`
	SharedCount   int       `json:"sharedCount"`
	AttendedCount int       `json:"attendedCount"`
	ArchivedCount int       `json:"archivedCount"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// RecommendationQueue is the per-user pool of precomputed event ids. The
// slice order is the serving order; the front is served next.
type RecommendationQueue struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	EventIDs    []int64   `json:"eventIds"`
	LastUpdated time.Time `json:"lastUpdated"`
}
