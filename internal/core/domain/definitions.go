package domain

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Definition names derived from well-known options.
const (
	DefinitionShared = "SHARED"
	DefinitionPIC    = "PIC"
)

// DefinitionKind is the type of a definition value.
type DefinitionKind uint8

// Definition kinds.
const (
	DefinitionBool DefinitionKind = iota
	DefinitionString
)

// Definition is one entry of a DefinitionMap.
type Definition struct {
	Name  string         `json:"name"`
	Kind  DefinitionKind `json:"kind"`
	Value string         `json:"value"`
}

// Bool returns the boolean value of a DefinitionBool entry.
func (d Definition) Bool() bool {
	return d.Kind == DefinitionBool && d.Value == ValueTrue
}

// OptionBinding forwards a resolved option value to a named build variable.
type OptionBinding struct {
	Option   string
	Variable string
}

// DefinitionMap is the immutable build configuration handed to the build
// system. Entries are kept sorted by name so that equal maps encode to equal
// bytes.
type DefinitionMap struct {
	entries []Definition
}

// ResolveDefinitions derives the build configuration from a flag set and the
// resolved options. It is a pure function of its inputs.
//
// Every toggle of the vocabulary is present. SHARED and PIC mirror the shared
// and fPIC options when they survived pruning. Each binding adds one entry
// when its option is present.
func ResolveDefinitions(flags FlagSet, options ResolvedOptionSet, bindings []OptionBinding) (DefinitionMap, error) {
	if err := flags.Validate(); err != nil {
		return DefinitionMap{}, err
	}

	entries := make([]Definition, 0, int(toggleCount)+2+len(bindings))
	for _, t := range AllToggles() {
		entries = append(entries, boolDefinition(t.String(), flags.Enabled(t)))
	}

	if v, ok := options.Bool(OptionShared); ok {
		entries = append(entries, boolDefinition(DefinitionShared, v))
	}
	if v, ok := options.Bool(OptionFPIC); ok {
		entries = append(entries, boolDefinition(DefinitionPIC, v))
	}

	for _, b := range bindings {
		if IsReservedDefinition(b.Variable) {
			return DefinitionMap{}, configurationError(Tag(ErrDefinitionCollision, "definition", b.Variable))
		}
		v, ok := options.Get(b.Option)
		if !ok {
			continue
		}
		if v == ValueTrue || v == ValueFalse {
			entries = append(entries, boolDefinition(b.Variable, v == ValueTrue))
		} else {
			entries = append(entries, Definition{Name: b.Variable, Kind: DefinitionString, Value: v})
		}
	}

	slices.SortFunc(entries, func(a, b Definition) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(entries); i++ {
		if entries[i].Name == entries[i-1].Name {
			return DefinitionMap{}, configurationError(Tag(ErrDefinitionCollision, "definition", entries[i].Name))
		}
	}

	return DefinitionMap{entries: entries}, nil
}

// IsReservedDefinition reports whether name is produced by kiln itself and
// cannot be bound to a recipe option.
func IsReservedDefinition(name string) bool {
	if name == DefinitionShared || name == DefinitionPIC {
		return true
	}
	_, err := ParseToggle(name)
	return err == nil
}

func boolDefinition(name string, v bool) Definition {
	d := Definition{Name: name, Kind: DefinitionBool, Value: ValueFalse}
	if v {
		d.Value = ValueTrue
	}
	return d
}

// Get returns the named entry.
func (m DefinitionMap) Get(name string) (Definition, bool) {
	i, ok := slices.BinarySearchFunc(m.entries, name, func(d Definition, name string) int {
		return strings.Compare(d.Name, name)
	})
	if !ok {
		return Definition{}, false
	}
	return m.entries[i], true
}

// Bool returns the boolean value of the named entry and whether it exists.
func (m DefinitionMap) Bool(name string) (value, ok bool) {
	d, ok := m.Get(name)
	if !ok {
		return false, false
	}
	return d.Bool(), true
}

// Has reports whether the named entry exists.
func (m DefinitionMap) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Entries returns the entries in sorted order.
func (m DefinitionMap) Entries() []Definition {
	return slices.Clone(m.entries)
}

// Len returns the number of entries.
func (m DefinitionMap) Len() int {
	return len(m.entries)
}

// Equal reports whether both maps hold the same entries.
func (m DefinitionMap) Equal(other DefinitionMap) bool {
	return slices.Equal(m.entries, other.entries)
}

// Encode renders the map in its canonical form, one NAME:TYPE=VALUE line per
// entry. Booleans are written as ON or OFF.
func (m DefinitionMap) Encode() []byte {
	var buf bytes.Buffer
	for _, d := range m.entries {
		buf.WriteString(d.Name)
		if d.Kind == DefinitionBool {
			buf.WriteString(":BOOL=")
			if d.Bool() {
				buf.WriteString("ON")
			} else {
				buf.WriteString("OFF")
			}
		} else {
			buf.WriteString(":STRING=")
			buf.WriteString(d.Value)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Fingerprint returns a stable hash of the encoded map.
func (m DefinitionMap) Fingerprint() string {
	return fmt.Sprintf("%016x", xxhash.Sum64(m.Encode()))
}

// DefinitionMapFromEntries rebuilds a map from stored entries.
func DefinitionMapFromEntries(entries []Definition) DefinitionMap {
	out := slices.Clone(entries)
	slices.SortFunc(out, func(a, b Definition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return DefinitionMap{entries: out}
}
