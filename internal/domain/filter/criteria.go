// Package filter implements the record filter used by every list view: text
// search across field groups, categorical membership, date-range containment
// and boolean presence. A view supplies the field accessors for its record
// type; criteria name those fields.
package filter

import (
	"strings"
	"time"
)

// Criteria is an immutable set of constraints for one query. Every
// constraint must pass for a record to match. A zero Criteria matches
// everything.
type Criteria struct {
	Text       []TextTerm   `json:"text,omitempty"`
	Membership []Membership `json:"membership,omitempty"`
	Ranges     []DateRange  `json:"ranges,omitempty"`
	Presence   []Presence   `json:"presence,omitempty"`
}

// TextTerm searches Term as a case-insensitive substring of any field in the
// named group.
type TextTerm struct {
	Group string `json:"group"`
	Term  string `json:"term"`
}

// Membership requires the field value to be one of Allowed. An empty Allowed
// set places no constraint.
type Membership struct {
	Field   string   `json:"field"`
	Allowed []string `json:"allowed"`
}

// DateRange requires a date to fall within [Start, End], compared by calendar
// day. A nil bound leaves that side open. With two Fields the record passes
// when at least one of its dates is in range.
type DateRange struct {
	Fields []string   `json:"fields"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// Presence is tri-state: true means the field must be present, false means it
// must be absent, nil places no constraint.
type Presence struct {
	Field string `json:"field"`
	Want  *bool  `json:"want,omitempty"`
}

// AllTime is the explicit unbounded range over the given date fields.
func AllTime(fields ...string) DateRange {
	return DateRange{Fields: append([]string(nil), fields...)}
}

// Between builds an inclusive range. Either bound may be nil.
func Between(start, end *time.Time, fields ...string) DateRange {
	return DateRange{Fields: append([]string(nil), fields...), Start: start, End: end}
}

// IsAllTime reports whether the range has no bounds.
func (r DateRange) IsAllTime() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether t falls within the range by calendar day.
func (r DateRange) Contains(t time.Time) bool {
	day := civilDay(t)
	if r.Start != nil && day < civilDay(*r.Start) {
		return false
	}
	if r.End != nil && day > civilDay(*r.End) {
		return false
	}
	return true
}

// In builds a membership constraint.
func In(field string, allowed ...string) Membership {
	return Membership{Field: field, Allowed: append([]string(nil), allowed...)}
}

// Search builds a text term for a group.
func Search(group, term string) TextTerm {
	return TextTerm{Group: group, Term: term}
}

// Has builds a presence constraint.
func Has(field string, want bool) Presence {
	return Presence{Field: field, Want: &want}
}

// And returns criteria requiring both c and o. Neither input is modified.
func (c Criteria) And(o Criteria) Criteria {
	return Criteria{
		Text:       concat(c.Text, o.Text),
		Membership: concat(c.Membership, o.Membership),
		Ranges:     concat(c.Ranges, o.Ranges),
		Presence:   concat(c.Presence, o.Presence),
	}
}

// IsEmpty reports whether the criteria carry no active constraint.
func (c Criteria) IsEmpty() bool {
	for _, t := range c.Text {
		if strings.TrimSpace(t.Term) != "" {
			return false
		}
	}
	for _, m := range c.Membership {
		if len(m.Allowed) > 0 {
			return false
		}
	}
	for _, r := range c.Ranges {
		if !r.IsAllTime() {
			return false
		}
	}
	for _, p := range c.Presence {
		if p.Want != nil {
			return false
		}
	}
	return true
}

func concat[E any](a, b []E) []E {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]E, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// civilDay maps a time to a sortable yyyymmdd number in its own location.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
