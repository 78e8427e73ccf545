package models

import "strings"

// Separator joins type and subtype in the persisted encoding.
const Separator = "/"

// Record is a user's persisted agreement decision. The zero value means no
// decision has been recorded yet.
//
// SubType is a free-form tag describing the source of the decision (for
// example "close-button" or "navigation"). It carries no semantics beyond
// display and audit; precedence checks compare Type only.
type Record struct {
	Type    Type
	SubType string
}

// Decode parses the persisted wire form "type[/subType]". An empty raw value
// decodes to the zero Record (no decision).
func Decode(raw string) Record {
	if raw == "" {
		return Record{}
	}
	typ, sub, _ := strings.Cut(raw, Separator)
	return Record{Type: Type(typ), SubType: sub}
}

// Encode renders the wire form "type[/subType]". The subtype segment is
// omitted when empty. The zero Record encodes to "".
func (r Record) Encode() string {
	if r.Type == "" {
		return ""
	}
	if r.SubType == "" {
		return string(r.Type)
	}
	return string(r.Type) + Separator + r.SubType
}

// Exists reports whether a decision has been recorded.
func (r Record) Exists() bool {
	return r.Type != ""
}

// Allowed reports whether the recorded decision grants consent. It is a pure
// function of Type and is never stored independently.
func (r Record) Allowed() bool {
	return r.Type.Allowed()
}

// Status is the read-only projection exposed to callers.
type Status struct {
	Allowed bool   `json:"allowed"`
	Because string `json:"because"`
}

// Status projects the record into its caller-facing form.
func (r Record) Status() Status {
	return Status{Allowed: r.Allowed(), Because: r.Encode()}
}
