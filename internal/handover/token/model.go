package token

import "time"

// TokenTTL is how long a minted handover token stays claimable.
const TokenTTL = 7 * 24 * time.Hour

// Record is the persisted form of a handover token. Only the sha256 hex hash
// of the raw token is ever stored; the raw value exists in the magic link and
// nowhere else.
type Record struct {
	Hash          string
	UIN           string
	PersonalEmail string
	ClassYear     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Claimed       bool
	ClaimedAt     time.Time
}

// Usable reports whether the record can still satisfy a claim at the given
// instant.
func (r *Record) Usable(now time.Time) bool {
	return !r.Claimed && now.Before(r.ExpiresAt)
}

// Info is the validated, read-only projection handed to the claim flow.
type Info struct {
	UIN           string
	PersonalEmail string
	ClassYear     string
	ExpiresAt     time.Time
}
