package domain

import (
	"regexp"
	"slices"

	"go.trai.ch/zerr"
)

// GeneratorCMake is the only build-system generator kiln drives.
const GeneratorCMake = "cmake"

// ReservedRecipeName selects every recipe of a workspace on the command line.
const ReservedRecipeName = "all"

var recipeNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateRecipeName checks a recipe name for the allowed characters.
func ValidateRecipeName(name string) error {
	if name == "" {
		return ErrMissingRecipeName
	}
	if name == ReservedRecipeName {
		return ErrReservedRecipeName
	}
	if !recipeNameRegex.MatchString(name) {
		return Tag(ErrInvalidRecipeName, "recipe", name)
	}
	return nil
}

// SourceRef tells where a recipe's source comes from. Exactly one of Git or
// Path is set.
type SourceRef struct {
	// Git is the clone URL.
	Git string
	// Ref is the branch, tag or commit to check out.
	Ref string
	// Subdir is the directory inside the checkout that holds the build files.
	Subdir string
	// Path is a local source directory, relative to the recipe directory.
	Path string
}

// IsLocal reports whether the source is a local directory.
func (s SourceRef) IsLocal() bool {
	return s.Path != ""
}

// PackageDecl is what a recipe declares about its packaged output.
type PackageDecl struct {
	// Libs lists library names explicitly. When empty, libraries are
	// discovered from the install layout.
	Libs []string
	// IncludeDirs lists include directories relative to the install root.
	IncludeDirs []string
}

// IncludeDirsOrDefault returns the declared include dirs or ["include"].
func (p PackageDecl) IncludeDirsOrDefault() []string {
	if len(p.IncludeDirs) == 0 {
		return []string{"include"}
	}
	return slices.Clone(p.IncludeDirs)
}

// Recipe declares how to fetch, configure, build and package one versioned
// component.
type Recipe struct {
	Name        string
	Version     string
	License     string
	URL         string
	Description string
	Topics      []string

	// Dir is the directory containing the recipe file.
	Dir string

	Settings []string
	Options  OptionSchema

	Preset  Preset
	Toggles map[string]bool
	// DefinitionPrefix is prepended to toggle cache names, e.g. "OSSIA_".
	DefinitionPrefix string
	Bindings         []OptionBinding

	Source     SourceRef
	Exports    []string
	Generators []string

	Requirements []Requirement
	Package      PackageDecl
}

// Ref returns the recipe's reference.
func (r *Recipe) Ref() Reference {
	return Reference{Name: r.Name, Version: r.Version}
}

// Flags returns the recipe's preset flags with its toggle overrides applied.
func (r *Recipe) Flags() (FlagSet, error) {
	return r.FlagsFor(r.Preset)
}

// FlagsFor returns the flags of the given preset with the recipe's toggle
// overrides applied.
func (r *Recipe) FlagsFor(name Preset) (FlagSet, error) {
	preset, err := ParsePreset(string(name))
	if err != nil {
		return FlagSet{}, err
	}
	flags, err := preset.Flags().With(r.Toggles)
	if err != nil {
		return FlagSet{}, err
	}
	if err := flags.Validate(); err != nil {
		return FlagSet{}, err
	}
	return flags, nil
}

// LinkedRequirements returns the requirements linked into this recipe.
func (r *Recipe) LinkedRequirements() []Requirement {
	return filterKind(r.Requirements, KindLinked)
}

// ToolRequirements returns the build tool requirements.
func (r *Recipe) ToolRequirements() []Requirement {
	return filterKind(r.Requirements, KindBuildTool)
}

// Validate checks the recipe for declaration errors that would otherwise
// surface only during a phase.
func (r *Recipe) Validate() error {
	if err := ValidateRecipeName(r.Name); err != nil {
		return err
	}
	if err := ValidatePin(r.Version); err != nil {
		return configurationError(zerr.With(err, "recipe", r.Name))
	}
	if err := ValidateSettingNames(r.Settings); err != nil {
		return err
	}
	for _, g := range r.Generators {
		if g != GeneratorCMake {
			return configurationError(Tag(ErrUnsupportedGenerator, "generator", g))
		}
	}
	if r.Source.Git == "" && r.Source.Path == "" {
		return configurationError(Tag(ErrMissingSource, "recipe", r.Name))
	}
	if r.Source.Git != "" && r.Source.Ref == "" {
		err := Tag(ErrMissingSourceRef, "recipe", r.Name)
		return configurationError(zerr.With(err, "url", r.Source.Git))
	}
	if _, err := r.Flags(); err != nil {
		return err
	}
	for _, b := range r.Bindings {
		if !r.Options.Has(b.Option) {
			return configurationError(Tag(ErrUnknownOption, "option", b.Option))
		}
		if IsReservedDefinition(b.Variable) {
			return configurationError(Tag(ErrDefinitionCollision, "definition", b.Variable))
		}
	}
	return nil
}
