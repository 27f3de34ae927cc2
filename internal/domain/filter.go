package domain

import (
	"fmt"
	"regexp"
)

// FilterOp is the comparison operator of a filter criterion
type FilterOp string

const (
	// FilterOpEquals - exact string equality
	FilterOpEquals FilterOp = "="
	// FilterOpRegex - unanchored regular expression match
	FilterOpRegex FilterOp = "Regex"
	// FilterOpNotRegex - negated regular expression match
	FilterOpNotRegex FilterOp = "!Regex"
)

// Filter is a predicate over a discovered resource. The shorthand Name and
// Type fields are unanchored regular expressions against the resource's
// display name and type; Prop/Op/Val addresses an arbitrary property with an
// explicit operator. A filter with no criteria matches everything.
type Filter struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Prop string   `json:"Prop,omitempty" yaml:"Prop,omitempty"`
	Op   FilterOp `json:"Op,omitempty" yaml:"Op,omitempty"`
	Val  string   `json:"Val,omitempty" yaml:"Val,omitempty"`
}

// FilterTarget is the generic shape a filter is evaluated against.
type FilterTarget struct {
	Name  string
	Type  string
	Props map[string]string
}

// Validate checks that regular expressions compile and the operator is known.
func (f Filter) Validate() error {
	if f.Name != "" {
		if _, err := regexp.Compile(f.Name); err != nil {
			return fmt.Errorf("filter name pattern %q: %w", f.Name, err)
		}
	}
	if f.Type != "" {
		if _, err := regexp.Compile(f.Type); err != nil {
			return fmt.Errorf("filter type pattern %q: %w", f.Type, err)
		}
	}
	if f.Prop != "" {
		switch f.Op {
		case FilterOpEquals, "":
		case FilterOpRegex, FilterOpNotRegex:
			if _, err := regexp.Compile(f.Val); err != nil {
				return fmt.Errorf("filter %s pattern %q: %w", f.Prop, f.Val, err)
			}
		default:
			return fmt.Errorf("filter %s: unknown operator %q", f.Prop, f.Op)
		}
	}
	return nil
}

// Matches reports whether every given criterion of the filter holds for the
// target. Invalid patterns never match; call Validate first to surface them.
func (f Filter) Matches(t FilterTarget) bool {
	if f.Name != "" && !regexSearch(f.Name, t.Name) {
		return false
	}
	if f.Type != "" && !regexSearch(f.Type, t.Type) {
		return false
	}
	if f.Prop != "" && !f.evalProp(t.Props[f.Prop]) {
		return false
	}
	return true
}

func (f Filter) evalProp(value string) bool {
	switch f.Op {
	case FilterOpEquals, "":
		return value == f.Val
	case FilterOpRegex:
		return regexSearch(f.Val, value)
	case FilterOpNotRegex:
		return !regexSearch(f.Val, value)
	}
	return false
}

func regexSearch(pattern, s string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// ValidateFilters validates a filter list, naming the list in errors.
func ValidateFilters(field string, filters []Filter) error {
	for i, f := range filters {
		if err := f.Validate(); err != nil {
			return &ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("entry %d: %v", i, err),
			}
		}
	}
	return nil
}

// AnyMatches reports whether any filter in the list matches the target.
// Used for post-discovery removal: a matching resource is removed.
func AnyMatches(filters []Filter, t FilterTarget) bool {
	for _, f := range filters {
		if f.Matches(t) {
			return true
		}
	}
	return false
}

// AcceptedByExpressions evaluates server-side discovery expression filters
// the way the discovery job does: every expression must hold for a resource
// to enter the accepted set. An empty list accepts everything.
func AcceptedByExpressions(filters []Filter, t FilterTarget) bool {
	for _, f := range filters {
		prop := f.Prop
		if prop == "" {
			continue
		}
		if !f.evalProp(t.Props[prop]) {
			return false
		}
	}
	return true
}
