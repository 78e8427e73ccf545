package models

import "strings"

// Type labels how an agreement came to be. Precedence rules between types are
// enforced at update time: an implicit agreement never replaces a deny or
// explicit one.
type Type string

const (
	TypeDeny     Type = "deny"
	TypeExplicit Type = "explicit"
	TypeImplicit Type = "implicit"
)

// allowedByType is the single source of truth for the allowed projection.
// Absent and unrecognized types default to false.
var allowedByType = map[Type]bool{
	TypeDeny:     false,
	TypeExplicit: true,
	TypeImplicit: true,
}

// IsValid checks if the agreement type is one of the supported enum values.
func (t Type) IsValid() bool {
	_, ok := allowedByType[t]
	return ok
}

// Allowed reports whether this type grants consent.
func (t Type) Allowed() bool {
	return allowedByType[t]
}

// Normalize canonicalizes caller-supplied type and subtype strings before
// validation: trimmed and lower-cased.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
