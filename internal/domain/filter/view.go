package filter

import (
	"fmt"
	"strings"
	"time"
)

// View is the per-record-type strategy table. It names the fields criteria
// may reference and how to read them from a record.
type View[T any] struct {
	// Groups maps a search group name to the text fields searched together.
	Groups   map[string][]string
	Text     map[string]func(T) string
	Category map[string]func(T) string
	Dates    map[string]func(T) *time.Time
	Presence map[string]func(T) bool
}

// Matches evaluates all constraints against rec, cheapest first, stopping at
// the first failure. Constraints naming fields unknown to the view are
// treated as unconstrained; use Validate to reject them up front.
func (v View[T]) Matches(rec T, c Criteria) bool {
	for _, t := range c.Text {
		if !v.matchText(rec, t) {
			return false
		}
	}
	for _, m := range c.Membership {
		if !v.matchMembership(rec, m) {
			return false
		}
	}
	for _, r := range c.Ranges {
		if !v.matchRange(rec, r) {
			return false
		}
	}
	for _, p := range c.Presence {
		if !v.matchPresence(rec, p) {
			return false
		}
	}
	return true
}

// Filter returns the records matching c in their input order.
func Filter[T any](v View[T], records []T, c Criteria) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if v.Matches(rec, c) {
			out = append(out, rec)
		}
	}
	return out
}

// Validate reports constraints that reference a group or field the view does
// not declare.
func (v View[T]) Validate(c Criteria) error {
	for _, t := range c.Text {
		if _, ok := v.Groups[t.Group]; !ok {
			return fmt.Errorf("unknown search group %q", t.Group)
		}
	}
	for _, m := range c.Membership {
		if _, ok := v.Category[m.Field]; !ok {
			return fmt.Errorf("unknown category field %q", m.Field)
		}
	}
	for _, r := range c.Ranges {
		if len(r.Fields) == 0 || len(r.Fields) > 2 {
			return fmt.Errorf("date range must name one or two fields, got %d", len(r.Fields))
		}
		for _, f := range r.Fields {
			if _, ok := v.Dates[f]; !ok {
				return fmt.Errorf("unknown date field %q", f)
			}
		}
	}
	for _, p := range c.Presence {
		if _, ok := v.Presence[p.Field]; !ok {
			return fmt.Errorf("unknown presence field %q", p.Field)
		}
	}
	return nil
}

func (v View[T]) matchText(rec T, t TextTerm) bool {
	term := strings.ToLower(strings.TrimSpace(t.Term))
	if term == "" {
		return true
	}
	fields, ok := v.Groups[t.Group]
	if !ok {
		return true
	}
	for _, name := range fields {
		get, ok := v.Text[name]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(get(rec)), term) {
			return true
		}
	}
	return false
}

func (v View[T]) matchMembership(rec T, m Membership) bool {
	if len(m.Allowed) == 0 {
		return true
	}
	get, ok := v.Category[m.Field]
	if !ok {
		return true
	}
	val := get(rec)
	for _, a := range m.Allowed {
		if a == val {
			return true
		}
	}
	return false
}

func (v View[T]) matchRange(rec T, r DateRange) bool {
	if r.IsAllTime() {
		return true
	}
	known := 0
	for _, name := range r.Fields {
		get, ok := v.Dates[name]
		if !ok {
			continue
		}
		known++
		if d := get(rec); d != nil && r.Contains(*d) {
			return true
		}
	}
	return known == 0
}

func (v View[T]) matchPresence(rec T, p Presence) bool {
	if p.Want == nil {
		return true
	}
	get, ok := v.Presence[p.Field]
	if !ok {
		return true
	}
	return get(rec) == *p.Want
}
