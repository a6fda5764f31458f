package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Set is an unordered collection of string identifiers.
// It serializes as a sorted JSON array.
type Set map[string]struct{}

// NewSet creates a set holding the given values
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is in the set
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v and reports whether it was newly added
func (s Set) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts a plain array or the tagged form
// {"_type": "Set", "value": [...]} written by older saves.
func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*s = NewSet(values...)
		return nil
	}

	var tagged struct {
		Type  string   `json:"_type"`
		Value []string `json:"value"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("invalid set: %w", err)
	}
	if tagged.Type != "Set" {
		return fmt.Errorf("invalid set type %q", tagged.Type)
	}
	*s = NewSet(tagged.Value...)
	return nil
}
