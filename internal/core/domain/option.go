package domain

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Options with platform-dependent pruning rules.
const (
	OptionShared = "shared"
	OptionFPIC   = "fPIC"
)

// Canonical boolean option values.
const (
	ValueTrue  = "true"
	ValueFalse = "false"
)

// OptionDomain is the set of values an option accepts: either a boolean or a
// closed enumeration of strings.
type OptionDomain struct {
	values  []string
	boolean bool
}

// BoolDomain returns the domain of a boolean option.
func BoolDomain() OptionDomain {
	return OptionDomain{boolean: true}
}

// EnumDomain returns the domain of an option restricted to values.
func EnumDomain(values ...string) OptionDomain {
	return OptionDomain{values: slices.Clone(values)}
}

// IsBool reports whether the domain is boolean.
func (d OptionDomain) IsBool() bool {
	return d.boolean
}

// Values returns the accepted values in declaration order.
func (d OptionDomain) Values() []string {
	if d.boolean {
		return []string{ValueTrue, ValueFalse}
	}
	return slices.Clone(d.values)
}

// Normalize returns the canonical form of v and whether v lies in the domain.
// Boolean domains accept the usual spellings (true, False, 1, on, ...) and
// normalize them to "true" or "false".
func (d OptionDomain) Normalize(v string) (string, bool) {
	if d.boolean {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on", "yes":
			return ValueTrue, true
		case "off", "no":
			return ValueFalse, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	}
	if slices.Contains(d.values, v) {
		return v, true
	}
	return "", false
}

func (d OptionDomain) String() string {
	return "[" + strings.Join(d.Values(), ", ") + "]"
}

// Option is a named, typed recipe parameter.
type Option struct {
	Name    string
	Domain  OptionDomain
	Default string
}

// OptionSchema is the immutable set of options a recipe declares.
// Every method returns a new schema and leaves the receiver untouched.
type OptionSchema struct {
	opts []Option
}

// NewOptionSchema builds a schema from opts.
func NewOptionSchema(opts ...Option) (OptionSchema, error) {
	var s OptionSchema
	for _, o := range opts {
		var err error
		s, err = s.Declare(o.Name, o.Domain, o.Default)
		if err != nil {
			return OptionSchema{}, err
		}
	}
	return s, nil
}

// Declare returns a schema that additionally contains the named option.
func (s OptionSchema) Declare(name string, d OptionDomain, def string) (OptionSchema, error) {
	if _, ok := s.Lookup(name); ok {
		return OptionSchema{}, configurationError(Tag(ErrDuplicateOption, "option", name))
	}
	norm, ok := d.Normalize(def)
	if !ok {
		err := Tag(ErrInvalidOptionValue, "option", name)
		err = zerr.With(err, "value", def)
		return OptionSchema{}, configurationError(zerr.With(err, "domain", d.String()))
	}
	opts := make([]Option, 0, len(s.opts)+1)
	opts = append(opts, s.opts...)
	opts = append(opts, Option{Name: name, Domain: d, Default: norm})
	return OptionSchema{opts: opts}, nil
}

// Lookup returns the named option.
func (s OptionSchema) Lookup(name string) (Option, bool) {
	for _, o := range s.opts {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Has reports whether the schema contains the named option.
func (s OptionSchema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Options returns the options in declaration order.
func (s OptionSchema) Options() []Option {
	return slices.Clone(s.opts)
}

// Names returns the option names in declaration order.
func (s OptionSchema) Names() []string {
	names := make([]string, len(s.opts))
	for i, o := range s.opts {
		names[i] = o.Name
	}
	return names
}

// Len returns the number of declared options.
func (s OptionSchema) Len() int {
	return len(s.opts)
}

// Without returns the schema minus the named options.
func (s OptionSchema) Without(names ...string) OptionSchema {
	opts := make([]Option, 0, len(s.opts))
	for _, o := range s.opts {
		if !slices.Contains(names, o.Name) {
			opts = append(opts, o)
		}
	}
	return OptionSchema{opts: opts}
}

// Defaults returns the default value of every option.
func (s OptionSchema) Defaults() map[string]string {
	out := make(map[string]string, len(s.opts))
	for _, o := range s.opts {
		out[o.Name] = o.Default
	}
	return out
}

// Prune removes the options that do not apply to the given settings and
// current values. It never mutates schema.
//
// fPIC does not exist on Windows and is meaningless for shared libraries, so
// it is removed in both cases.
func Prune(schema OptionSchema, settings Settings, current map[string]string) OptionSchema {
	var drop []string
	if schema.Has(OptionFPIC) {
		if settings.OS == OSWindows {
			drop = append(drop, OptionFPIC)
		} else if current[OptionShared] == ValueTrue {
			drop = append(drop, OptionFPIC)
		}
	}
	if len(drop) == 0 {
		return schema
	}
	return schema.Without(drop...)
}

// Resolve validates overrides against schema, prunes the schema for
// settings and returns the final option values.
//
// Unknown names and out-of-domain values are configuration errors even when
// they target an option that is pruned afterwards. Valid overrides of pruned
// options are dropped.
func Resolve(schema OptionSchema, settings Settings, overrides map[string]string) (ResolvedOptionSet, error) {
	current := schema.Defaults()

	names := slices.Sorted(maps.Keys(overrides))
	for _, name := range names {
		opt, ok := schema.Lookup(name)
		if !ok {
			return ResolvedOptionSet{}, configurationError(Tag(ErrUnknownOption, "option", name))
		}
		norm, ok := opt.Domain.Normalize(overrides[name])
		if !ok {
			err := Tag(ErrInvalidOptionValue, "option", name)
			err = zerr.With(err, "value", overrides[name])
			return ResolvedOptionSet{}, configurationError(zerr.With(err, "domain", opt.Domain.String()))
		}
		current[name] = norm
	}

	pruned := Prune(schema, settings, current)

	values := make(map[string]string, pruned.Len())
	for _, name := range pruned.Names() {
		values[name] = current[name]
	}
	return ResolvedOptionSet{values: values}, nil
}

// ResolvedOptionSet is the immutable result of option resolution.
// Pruned options are absent rather than false.
type ResolvedOptionSet struct {
	values map[string]string
}

// NewResolvedOptionSet wraps already resolved values, e.g. read back from a
// build record.
func NewResolvedOptionSet(values map[string]string) ResolvedOptionSet {
	return ResolvedOptionSet{values: maps.Clone(values)}
}

// Get returns the value of the named option.
func (r ResolvedOptionSet) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the named option survived pruning.
func (r ResolvedOptionSet) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Bool returns the boolean value of the named option and whether it is present.
func (r ResolvedOptionSet) Bool(name string) (value, ok bool) {
	v, ok := r.values[name]
	if !ok {
		return false, false
	}
	return v == ValueTrue, true
}

// Names returns the option names in sorted order.
func (r ResolvedOptionSet) Names() []string {
	return slices.Sorted(maps.Keys(r.values))
}

// Map returns a copy of the resolved values.
func (r ResolvedOptionSet) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	maps.Copy(out, r.values)
	return out
}

// Len returns the number of resolved options.
func (r ResolvedOptionSet) Len() int {
	return len(r.values)
}

// String renders the set as name=value pairs in sorted order.
func (r ResolvedOptionSet) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, name := range r.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(r.values[name])
	}
	b.WriteString("}")
	return b.String()
}
