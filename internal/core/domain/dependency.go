package domain

import (
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Reference identifies a component by name and exact version, written
// "name/version". The version is kept exactly as written.
type Reference struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ParseReference parses "name/version" and checks that the version is a pin.
func ParseReference(s string) (Reference, error) {
	name, version, ok := strings.Cut(s, "/")
	if !ok || name == "" {
		return Reference{}, configurationError(Tag(ErrInvalidReference, "reference", s))
	}
	if err := ValidatePin(version); err != nil {
		return Reference{}, configurationError(zerr.With(err, "reference", s))
	}
	return Reference{Name: name, Version: version}, nil
}

func (r Reference) String() string {
	return r.Name + "/" + r.Version
}

// ValidatePin rejects anything that is not one exact version: empty strings,
// floating tags and range expressions.
func ValidatePin(version string) error {
	if version == "" || strings.EqualFold(version, "latest") {
		return Tag(ErrUnpinnedVersion, "version", version)
	}
	if strings.ContainsAny(version, "[]<>~^*, \t\n") {
		return Tag(ErrUnpinnedVersion, "version", version)
	}
	return nil
}

// RequirementKind tells how a dependency is consumed.
type RequirementKind uint8

// Requirement kinds.
const (
	// KindLinked dependencies are linked into the consumer and exposed to
	// its Configure step.
	KindLinked RequirementKind = iota
	// KindBuildTool dependencies are only needed while building.
	KindBuildTool
)

func (k RequirementKind) String() string {
	if k == KindBuildTool {
		return "tool"
	}
	return "linked"
}

// Requirement is one declared dependency of a recipe.
type Requirement struct {
	Ref     Reference
	Kind    RequirementKind
	Options map[string]string
}

// Declarator collects the dependencies of one recipe in declaration order.
type Declarator struct {
	reqs []Requirement
}

// Requires declares a linked dependency. overrides are forced onto the
// dependency's options.
func (d *Declarator) Requires(ref string, overrides map[string]string) error {
	r, err := ParseReference(ref)
	if err != nil {
		return err
	}
	d.reqs = append(d.reqs, Requirement{Ref: r, Kind: KindLinked, Options: maps.Clone(overrides)})
	return nil
}

// ToolRequires declares a build-time tool dependency.
func (d *Declarator) ToolRequires(ref string) error {
	r, err := ParseReference(ref)
	if err != nil {
		return err
	}
	d.reqs = append(d.reqs, Requirement{Ref: r, Kind: KindBuildTool})
	return nil
}

// Requirements returns the declared requirements in declaration order.
func (d *Declarator) Requirements() []Requirement {
	return slices.Clone(d.reqs)
}

func filterKind(reqs []Requirement, kind RequirementKind) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
