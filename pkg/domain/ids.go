// Package domain provides strongly typed identifiers shared across modules.
//
// Wrapping uuid.UUID in distinct types prevents accidentally passing a
// treasury account where a caller account is expected; the compiler catches
// the mix-up instead of a reviewer.
package domain

import "github.com/google/uuid"

// AccountID identifies a participant: a caller, a name owner, or the
// treasury. The zero value is the nil UUID and is never a valid participant.
type AccountID uuid.UUID

// NewAccountID returns a random AccountID.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// ParseAccountID parses the canonical string form of an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// IsNil reports whether the ID is the zero identity.
func (a AccountID) IsNil() bool {
	return uuid.UUID(a) == uuid.Nil
}

func (a AccountID) String() string {
	return uuid.UUID(a).String()
}

// MarshalText implements encoding.TextMarshaler so AccountIDs render as
// canonical UUID strings in JSON payloads.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*a = AccountID(u)
	return nil
}
