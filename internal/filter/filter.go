// Package filter decides which paths are excluded from synchronization.
//
// A filter holds an ordered list of glob-style patterns (`*` matches any
// sequence of characters including path separators, `?` matches exactly one)
// and one of three kinds:
//
//   - Exclude: a path is excluded if any pattern matches the full path.
//   - ExcludeFile: a path is excluded if any pattern matches the file name
//     component only.
//   - Include: the sense is inverted - a path is excluded if it matches none
//     of the patterns. An Include filter with an empty pattern list therefore
//     excludes everything ("matches none of zero patterns" is vacuously true),
//     while an empty Exclude or ExcludeFile filter excludes nothing.
//
// Filters combine by OR: any filter excluding a path excludes it.
package filter

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gobwas/glob"
)

// Kind identifies the matching behavior of a filter.
type Kind int

const (
	KindExclude Kind = iota
	KindExcludeFile
	KindInclude
)

// Wire tags for the persisted store format.
const (
	TagExclude     = "EF"
	TagExcludeFile = "EFF"
	TagInclude     = "IF"
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindExclude:
		return "exclude"
	case KindExcludeFile:
		return "exclude-file"
	case KindInclude:
		return "include"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tag returns the store type tag for the kind, or false for an unknown kind.
func (k Kind) Tag() (string, bool) {
	switch k {
	case KindExclude:
		return TagExclude, true
	case KindExcludeFile:
		return TagExcludeFile, true
	case KindInclude:
		return TagInclude, true
	default:
		return "", false
	}
}

// KindFromTag maps a store type tag back to a kind.
func KindFromTag(tag string) (Kind, bool) {
	switch tag {
	case TagExclude:
		return KindExclude, true
	case TagExcludeFile:
		return KindExcludeFile, true
	case TagInclude:
		return KindInclude, true
	default:
		return 0, false
	}
}

// KindFromString maps a human-readable kind name (as printed by Kind.String
// and accepted by the CLI) back to a kind.
func KindFromString(s string) (Kind, bool) {
	switch s {
	case "exclude":
		return KindExclude, true
	case "exclude-file":
		return KindExcludeFile, true
	case "include":
		return KindInclude, true
	default:
		return 0, false
	}
}

// MarshalYAML encodes the kind by name for watch export.
func (k Kind) MarshalYAML() (interface{}, error) {
	if _, ok := k.Tag(); !ok {
		return nil, fmt.Errorf("unknown filter kind %d", int(k))
	}
	return k.String(), nil
}

// UnmarshalYAML decodes a kind name produced by MarshalYAML.
func (k *Kind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	kind, ok := KindFromString(name)
	if !ok {
		return fmt.Errorf("unknown filter kind %q", name)
	}
	*k = kind
	return nil
}

// Filter is one pattern-matching rule. It is pure data so watch
// configurations stay comparable and round-trippable; compiled matchers live
// in the Set that evaluates it.
type Filter struct {
	Kind     Kind     `yaml:"kind"`
	Patterns []string `yaml:"patterns"`
}

// Validate rejects filters the store writer would not be able to persist.
func (f Filter) Validate() error {
	if _, ok := f.Kind.Tag(); !ok {
		return fmt.Errorf("unknown filter kind %d", int(f.Kind))
	}
	return nil
}

// Equal reports deep equality, order-sensitive for patterns.
func (f Filter) Equal(o Filter) bool {
	if f.Kind != o.Kind || len(f.Patterns) != len(o.Patterns) {
		return false
	}
	for i, p := range f.Patterns {
		if p != o.Patterns[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no pattern storage with f.
func (f Filter) Clone() Filter {
	c := Filter{Kind: f.Kind}
	if f.Patterns != nil {
		c.Patterns = append([]string(nil), f.Patterns...)
	}
	return c
}

// CloneFilters deep-copies a filter list.
func CloneFilters(filters []Filter) []Filter {
	if filters == nil {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = f.Clone()
	}
	return out
}

// EqualFilters reports deep, order-sensitive equality of two filter lists.
func EqualFilters(a, b []Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ErrorFunc is the side channel for pattern compilation failures. Evaluation
// itself never returns an error and never panics: an invalid pattern is
// reported once through this callback and treated as a non-match afterwards.
type ErrorFunc func(pattern string, err error)

// Set evaluates an ordered list of filters against paths.
type Set struct {
	mu       sync.Mutex
	filters  []Filter
	compiled [][]glob.Glob // nil entry = pattern failed to compile
	onError  ErrorFunc
	reported map[string]bool
}

// NewSet creates a filter set. onError may be nil.
func NewSet(filters []Filter, onError ErrorFunc) *Set {
	s := &Set{
		onError:  onError,
		reported: make(map[string]bool),
	}
	for _, f := range filters {
		s.append(f)
	}
	return s
}

// Append adds a filter to the end of the set.
func (s *Set) Append(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(f)
}

func (s *Set) append(f Filter) {
	globs := make([]glob.Glob, len(f.Patterns))
	for i, pattern := range f.Patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			globs[i] = nil
			s.reportLocked(pattern, err)
			continue
		}
		globs[i] = g
	}
	s.filters = append(s.filters, f.Clone())
	s.compiled = append(s.compiled, globs)
}

func (s *Set) reportLocked(pattern string, err error) {
	if s.reported[pattern] {
		return
	}
	s.reported[pattern] = true
	if s.onError != nil {
		s.onError(pattern, err)
	}
}

// Filters returns a copy of the current filter list, in order.
func (s *Set) Filters() []Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneFilters(s.filters)
}

// Len returns the number of filters in the set.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

// ShouldExclude reports whether path is excluded by any filter in the set.
func (s *Set) ShouldExclude(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.filters {
		if s.excludesLocked(f, s.compiled[i], path) {
			return true
		}
	}
	return false
}

func (s *Set) excludesLocked(f Filter, globs []glob.Glob, path string) bool {
	switch f.Kind {
	case KindExclude:
		return anyMatch(globs, path)
	case KindExcludeFile:
		return anyMatch(globs, filepath.Base(path))
	case KindInclude:
		// Excluded when no pattern matches. Zero patterns match nothing,
		// so an empty Include excludes every path.
		return !anyMatch(globs, path)
	default:
		return false
	}
}

func anyMatch(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g == nil {
			continue
		}
		if g.Match(s) {
			return true
		}
	}
	return false
}
