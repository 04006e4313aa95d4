package parties

import "errors"

var (
	ErrPartyNotFound      = errors.New("party not found")
	ErrPlayerNotFound     = errors.New("player not in a party")
	ErrCodeSpaceExhausted = errors.New("no free party code")
)

// Reasons a best-effort mutation was skipped.
const (
	ReasonPartyNotFound    = "party_not_found"
	ReasonPlayerNotInParty = "player_not_in_party"
	ReasonNotMember        = "not_member"
	ReasonNotLeader        = "not_leader"
	ReasonNoEncounter      = "no_encounter"
	ReasonNonPositive      = "non_positive_amount"
)

// Outcome reports whether a best-effort mutation changed state. Callers
// outside the service see success either way; Reason is for logs and tests.
type Outcome struct {
	Applied bool
	Reason  string
}

func applied() Outcome {
	return Outcome{Applied: true}
}

func ignored(reason string) Outcome {
	return Outcome{Reason: reason}
}
