package models

import (
	"time"

	id "registrar/pkg/domain"
)

// MaxFee bounds the registration fee: one base-currency unit expressed in
// micro-units. The fee is always within [1, MaxFee] after initialization.
const MaxFee int64 = 1_000_000

// DomainRecord is the immutable outcome of a successful registration.
// Records are created exactly once per unique name and never mutated or
// deleted; there is no expiry or renewal.
type DomainRecord struct {
	Name         Name         `json:"name"`
	Owner        id.AccountID `json:"owner"`
	Level        int          `json:"level"`
	Position     int          `json:"position"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// MarshalText lets Name render as its string form inside JSON payloads.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.value), nil
}

// UnmarshalText parses and validates a Name from its text form.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := ParseName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
