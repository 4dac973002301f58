package domain

import (
	"errors"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Error taxonomy. Every failure surfaced by a recipe instance is classified
// under exactly one of these kinds through RecipeError.
var (
	// ErrConfiguration is returned for invalid or conflicting option requests.
	ErrConfiguration = zerr.New("configuration error")

	// ErrSourceFetch is returned when the pinned source cannot be fetched.
	ErrSourceFetch = zerr.New("source fetch error")

	// ErrBuild is returned when the external toolchain fails.
	ErrBuild = zerr.New("build error")

	// ErrPackage is returned when the install step fails or leaves an incomplete layout.
	ErrPackage = zerr.New("package error")

	// ErrDiscovery is returned when library discovery finds zero or ambiguous candidates.
	ErrDiscovery = zerr.New("discovery error")

	// ErrPhaseOrder is returned when a phase is invoked before its predecessors completed.
	ErrPhaseOrder = zerr.New("phase invoked out of order")

	// ErrInstanceTerminated is returned for any phase invoked after an earlier phase failed.
	ErrInstanceTerminated = zerr.New("recipe instance terminated by an earlier failure")
)

var (
	// ErrUnknownOption is returned when an override names an option the recipe does not declare.
	ErrUnknownOption = zerr.New("unknown option")

	// ErrInvalidOptionValue is returned when a value is outside the option's domain.
	ErrInvalidOptionValue = zerr.New("value not in option domain")

	// ErrDuplicateOption is returned when a schema declares the same option twice.
	ErrDuplicateOption = zerr.New("option declared twice")

	// ErrUnknownSetting is returned when a settings key is not one of os, compiler, build_type, arch.
	ErrUnknownSetting = zerr.New("unknown setting")

	// ErrUnknownToggle is returned when a toggle name is not part of the closed vocabulary.
	ErrUnknownToggle = zerr.New("unknown feature toggle")

	// ErrUnknownPreset is returned when a preset name is neither full nor embeddable.
	ErrUnknownPreset = zerr.New("unknown preset, expected 'full' or 'embeddable'")

	// ErrBindingWithoutCore is returned when a binding toggle is enabled while CORE is disabled.
	ErrBindingWithoutCore = zerr.New("binding toggle requires CORE")

	// ErrDefinitionCollision is returned when an option binding reuses a reserved definition name.
	ErrDefinitionCollision = zerr.New("definition name already in use")

	// ErrInvalidReference is returned when a requirement is not of the form name/version.
	ErrInvalidReference = zerr.New("invalid reference, expected name/version")

	// ErrUnpinnedVersion is returned when a requirement uses a range or a floating version.
	ErrUnpinnedVersion = zerr.New("version must be an exact pin")

	// ErrPinMismatch is returned when a pinned version differs from the workspace recipe version.
	ErrPinMismatch = zerr.New("pinned version does not match recipe version")

	// ErrConflictingOverride is returned when two requests force different values on one option.
	ErrConflictingOverride = zerr.New("conflicting option override")

	// ErrUnsupportedGenerator is returned when a recipe lists a generator kiln cannot drive.
	ErrUnsupportedGenerator = zerr.New("unsupported generator")

	// ErrMissingSource is returned when a recipe declares neither a git nor a local source.
	ErrMissingSource = zerr.New("recipe declares no source")

	// ErrMissingSourceRef is returned when a git source names no tag, branch or commit.
	ErrMissingSourceRef = zerr.New("git source requires a pinned ref")

	// ErrMissingBuildOutput is returned when Package runs but the Build output is gone.
	ErrMissingBuildOutput = zerr.New("build output no longer exists")

	// ErrMissingIncludeDir is returned when a declared include directory was not installed.
	ErrMissingIncludeDir = zerr.New("declared include directory missing from install layout")

	// ErrNoLibraries is returned when discovery finds no library files.
	ErrNoLibraries = zerr.New("no libraries found in install layout")

	// ErrAmbiguousLibrary is returned when one library name is produced as both static and shared.
	ErrAmbiguousLibrary = zerr.New("library installed as both static and shared")

	// ErrDependencyFailed marks a node blocked by a failed dependency.
	ErrDependencyFailed = zerr.New("dependency failed")

	// ErrInvalidOptionFlag is returned when an option request is not of the form name:option=value.
	ErrInvalidOptionFlag = zerr.New("invalid option request, expected name:option=value")

	// ErrInvalidSettingFlag is returned when a setting request is not of the form key=value.
	ErrInvalidSettingFlag = zerr.New("invalid setting request, expected key=value")
)

var (
	// ErrRecipeAlreadyExists is returned when two recipes share a name in one graph.
	ErrRecipeAlreadyExists = zerr.New("recipe already exists")

	// ErrCycleDetected is returned when a cycle is detected in the recipe dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrRecipeNotFound is returned when a requested recipe is not found in the graph.
	ErrRecipeNotFound = zerr.New("recipe not found")

	// ErrNoTargetsSpecified is returned when no targets are specified for a command.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrMissingRecipeName is returned when a kiln.yaml lacks a recipe name.
	ErrMissingRecipeName = zerr.New("missing recipe name")

	// ErrInvalidRecipeName is returned when a recipe name contains invalid characters.
	ErrInvalidRecipeName = zerr.New("recipe name can only contain alphanumeric characters, dots, hyphens and underscores")

	// ErrReservedRecipeName is returned when a recipe uses the reserved name "all".
	ErrReservedRecipeName = zerr.New("recipe name 'all' is reserved")

	// ErrDuplicateRecipeName is returned when two recipe files of a workspace declare the same name.
	ErrDuplicateRecipeName = zerr.New("duplicate recipe name")

	// ErrConfigReadFailed is returned when a config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when neither kiln.yaml nor kiln.work.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find kiln.yaml or kiln.work.yaml")

	// ErrGraphExecutionFailed is returned when at least one recipe of a graph run failed.
	ErrGraphExecutionFailed = zerr.New("graph execution failed")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrUnknownPhase is returned when a phase name cannot be parsed.
	ErrUnknownPhase = zerr.New("unknown phase")

	// ErrNoBuildRecord is returned when re-packaging is requested without a recorded Build.
	ErrNoBuildRecord = zerr.New("no successful build recorded for this configuration")
)

// Tag attaches a key-value pair to a sentinel error. The result still matches
// the sentinel with errors.Is and prints the same message.
func Tag(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}

// RecipeError classifies a failure of one recipe instance.
//
// Kind is one of the taxonomy sentinels (ErrConfiguration, ErrSourceFetch,
// ErrBuild, ErrPackage, ErrDiscovery, ErrPhaseOrder, ErrInstanceTerminated),
// so errors.Is(err, domain.ErrBuild) holds for any build failure no matter how
// deeply it is wrapped.
type RecipeError struct {
	Kind     error
	Recipe   string
	Phase    Phase
	ExitCode int
	LogRef   string
	Err      error
}

// NewRecipeError creates a RecipeError of the given kind wrapping cause.
func NewRecipeError(kind, cause error) *RecipeError {
	return &RecipeError{Kind: kind, Err: cause}
}

// Message returns the error's own message without its cause chain.
func (e *RecipeError) Message() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Recipe != "" {
		b.WriteString(" in ")
		b.WriteString(e.Recipe)
	}
	if e.Phase != PhaseNone {
		b.WriteString(" during ")
		b.WriteString(e.Phase.String())
	}
	if e.Kind == ErrBuild {
		b.WriteString(" (exit status ")
		b.WriteString(strconv.Itoa(e.ExitCode))
		b.WriteString(")")
	}
	if e.LogRef != "" {
		b.WriteString(", see ")
		b.WriteString(e.LogRef)
	}
	return b.String()
}

func (e *RecipeError) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return e.Message() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *RecipeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind.
func (e *RecipeError) Is(target error) bool {
	return target == e.Kind
}

// AsRecipeError extracts the first RecipeError from err's chain.
func AsRecipeError(err error) (*RecipeError, bool) {
	var re *RecipeError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Attribute returns err with the recipe name and phase filled in when err is
// an unattributed RecipeError. Other errors are returned unchanged.
func Attribute(err error, recipe string, phase Phase) error {
	re, ok := err.(*RecipeError) //nolint:errorlint // only the outermost error is attributed
	if !ok {
		return err
	}
	cp := *re
	if cp.Recipe == "" {
		cp.Recipe = recipe
	}
	if cp.Phase == PhaseNone {
		cp.Phase = phase
	}
	return &cp
}

func configurationError(cause error) error {
	return NewRecipeError(ErrConfiguration, cause)
}

// ExitCode returns the exit status recorded by the executor somewhere in err's
// chain.
func ExitCode(err error) (int, bool) {
	for err != nil {
		var ze *zerr.Error
		if !errors.As(err, &ze) {
			return 0, false
		}
		if code, ok := ze.Metadata()["exit_code"].(int); ok {
			return code, true
		}
		err = ze.Unwrap()
	}
	return 0, false
}
