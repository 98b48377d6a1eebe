package models

import (
	"strings"

	dErrors "registrar/pkg/domain-errors"
)

// Separator joins the labels of a hierarchical name.
const Separator = "."

// Name length bounds apply to the whole name, separators included.
const (
	MinNameLength = 1
	MaxNameLength = 63
)

// Name is a validated, lowercase registrable identifier composed of one or
// more dot-separated labels.
//
// Invariants:
//   - total length is within [MinNameLength, MaxNameLength]
//   - every label is a non-empty run of [a-z0-9-]
//   - no label starts or ends with a hyphen
//   - no label contains consecutive hyphens (runs reset at the separator)
//
// Mixed-case input is accepted at the boundary and normalized to lowercase by
// ParseName, so case-variants of one logical name collapse to a single
// registry entry. The zero value is not a valid Name; construct through
// ParseName.
type Name struct {
	value string
}

// ParseName normalizes raw input to lowercase and validates it against the
// name grammar. Violations are reported as invariant errors naming the
// offending rule; callers at the API surface re-code them as validation
// failures.
func ParseName(raw string) (Name, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if err := validate(name); err != nil {
		return Name{}, err
	}
	return Name{value: name}, nil
}

// IsValid reports whether raw parses as a Name. It never panics and never
// returns an error; rule violations simply yield false.
func IsValid(raw string) bool {
	_, err := ParseName(raw)
	return err == nil
}

// validate runs a single classification pass over the candidate name.
// The previous byte is all the state needed: a separator before a hyphen
// means a label-leading hyphen, a hyphen before a separator means a
// label-trailing hyphen, and doubled bytes catch empty labels and hyphen
// runs. Seeding prev with the separator makes position 0 a label start.
func validate(name string) error {
	if len(name) < MinNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"name exceeds %d characters: %q is %d", MaxNameLength, name, len(name))
	}

	prev := Separator[0]
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if prev == Separator[0] {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"label cannot start with a hyphen: %q", name)
			}
			if prev == '-' {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"consecutive hyphens are not allowed: %q", name)
			}
		case c == Separator[0]:
			if prev == Separator[0] {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"empty label: %q", name)
			}
			if prev == '-' {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"label cannot end with a hyphen: %q", name)
			}
		default:
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"unsupported character %q in name %q", string(c), name)
		}
		prev = c
	}
	if prev == Separator[0] {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "empty label: %q", name)
	}
	if prev == '-' {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"label cannot end with a hyphen: %q", name)
	}
	return nil
}

func (n Name) String() string {
	return n.value
}

// IsZero reports whether the Name was never constructed through ParseName.
func (n Name) IsZero() bool {
	return n.value == ""
}

// Labels returns the ordered label sequence, leftmost (deepest) first.
func (n Name) Labels() []string {
	return strings.Split(n.value, Separator)
}

// Level is the number of labels; top-level names are level 1.
func (n Name) Level() int {
	return strings.Count(n.value, Separator) + 1
}

// Parent returns the name formed by dropping the first label. The second
// return is false for top-level names, which have no parent. The parent of a
// valid name is itself valid, so no re-validation happens here.
func (n Name) Parent() (Name, bool) {
	idx := strings.Index(n.value, Separator)
	if idx < 0 {
		return Name{}, false
	}
	return Name{value: n.value[idx+1:]}, true
}
