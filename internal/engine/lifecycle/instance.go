// Package lifecycle drives one recipe instance through its phases:
// Source, Configure, Build, Package and PackageInfo.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// errPredecessor is the cause of every phase order error.
var errPredecessor = zerr.New("predecessor phase has not completed")

// Publisher computes the artifact of an install tree.
type Publisher interface {
	Publish(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error)
}

// Deps are the collaborators of an instance.
type Deps struct {
	Fetcher     ports.SourceFetcher
	BuildSystem ports.BuildSystem
	Publisher   Publisher
	Store       ports.BuildInfoStore
	Hasher      ports.Hasher
	Logger      ports.Logger
}

// Config selects the recipe and the configuration of an instance.
type Config struct {
	// Root is the workspace root. Instance directories live below it.
	Root     string
	Recipe   *domain.Recipe
	Settings domain.Settings
	// Overrides are the requested option values, including the values
	// dependents force.
	Overrides map[string]string
	// Preset replaces the recipe's preset when set.
	Preset domain.Preset
}

// Env carries what an instance receives from the rest of the graph.
type Env struct {
	// PrefixPaths are the install roots of linked dependencies.
	PrefixPaths []string
	// ToolPaths are the bin directories of tool dependencies.
	ToolPaths []string
}

// Instance is one configured recipe. Its phases run strictly in order and
// only Package and PackageInfo may run again. The first failure terminates
// the instance.
//
// An Instance is not safe for concurrent use.
type Instance struct {
	deps     Deps
	root     string
	recipe   *domain.Recipe
	settings domain.Settings
	options  domain.ResolvedOptionSet
	defs     domain.DefinitionMap
	id       string
	layout   domain.InstanceLayout
	logRef   string

	phase    domain.Phase
	failed   error
	prefixes []string
	artifact *domain.Artifact
}

// New resolves the options and definitions of the recipe and returns the
// instance ready for Source. Resolution failures are configuration errors.
func New(deps Deps, cfg Config) (*Instance, error) {
	r := cfg.Recipe

	preset := cfg.Preset
	if preset == "" {
		preset = r.Preset
	}
	flags, err := r.FlagsFor(preset)
	if err != nil {
		return nil, configurationError(err, r.Name)
	}

	options, err := domain.Resolve(r.Options, cfg.Settings, cfg.Overrides)
	if err != nil {
		return nil, configurationError(err, r.Name)
	}

	defs, err := domain.ResolveDefinitions(flags, options, r.Bindings)
	if err != nil {
		return nil, configurationError(err, r.Name)
	}

	id := domain.GenerateInstanceID(r.Ref(), cfg.Settings.Restrict(r.Settings), options, defs)
	dir := domain.InstanceDirName(r.Ref(), id)

	return &Instance{
		deps:     deps,
		root:     cfg.Root,
		recipe:   r,
		settings: cfg.Settings,
		options:  options,
		defs:     defs,
		id:       id,
		layout:   domain.NewInstanceLayout(filepath.Join(cfg.Root, domain.DefaultInstancesPath(), dir)),
		logRef:   filepath.Join(domain.DefaultLogsPath(), dir+".log"),
	}, nil
}

// ID returns the instance ID.
func (i *Instance) ID() string { return i.id }

// Recipe returns the recipe of the instance.
func (i *Instance) Recipe() *domain.Recipe { return i.recipe }

// Options returns the resolved options.
func (i *Instance) Options() domain.ResolvedOptionSet { return i.options }

// Definitions returns the build configuration.
func (i *Instance) Definitions() domain.DefinitionMap { return i.defs }

// Layout returns the instance's directories.
func (i *Instance) Layout() domain.InstanceLayout { return i.layout }

// Phase returns the last completed phase.
func (i *Instance) Phase() domain.Phase { return i.phase }

// Artifact returns the published artifact, or nil before PackageInfo.
func (i *Instance) Artifact() *domain.Artifact { return i.artifact }

// Run performs a cold build: every phase in order.
func (i *Instance) Run(ctx context.Context, env Env, out io.Writer) (domain.Artifact, error) {
	if err := i.Source(ctx, out); err != nil {
		return domain.Artifact{}, err
	}
	if err := i.Configure(ctx, env.PrefixPaths, out); err != nil {
		return domain.Artifact{}, err
	}
	if err := i.Build(ctx, env.ToolPaths, out); err != nil {
		return domain.Artifact{}, err
	}
	if err := i.Package(ctx, out); err != nil {
		return domain.Artifact{}, err
	}
	return i.PackageInfo(ctx)
}

// Restore resumes the instance from the recorded successful Build of the same
// configuration, so that Package and PackageInfo can run again without
// rebuilding.
func (i *Instance) Restore() error {
	if err := i.check(domain.PhasePackage, domain.PhaseNone); err != nil {
		return err
	}

	info, err := i.deps.Store.Get(i.root, i.id)
	if err != nil {
		return i.fail(domain.PhasePackage, domain.ErrPackage, err)
	}
	if !info.Completed(domain.PhaseBuild) || info.Fingerprint != i.defs.Fingerprint() {
		cause := domain.Tag(domain.ErrNoBuildRecord, "instance", i.id)
		re := domain.NewRecipeError(domain.ErrPhaseOrder, cause)
		re.Recipe = i.recipe.Name
		re.Phase = domain.PhasePackage
		return re
	}

	i.phase = domain.PhaseBuild
	i.prefixes = nil
	i.deps.Logger.Debug(fmt.Sprintf("restored %s from build of %s", i.recipe.Name, info.Timestamp.Format(time.RFC3339)))
	return nil
}

// Source fetches the recipe source into the instance's source directory. A
// source tree recorded as fetched by an earlier run is reused.
func (i *Instance) Source(ctx context.Context, out io.Writer) error {
	if err := i.check(domain.PhaseSource, domain.PhaseNone); err != nil {
		return err
	}

	prev, err := i.deps.Store.Get(i.root, i.id)
	if err != nil {
		i.deps.Logger.Warn(fmt.Sprintf("ignoring unreadable build record of %s: %v", i.recipe.Name, err))
		prev = nil
	}
	if prev.Completed(domain.PhaseSource) && dirExists(i.layout.Source) {
		i.deps.Logger.Debug("source of " + i.recipe.Name + " already fetched")
		return i.advance(domain.PhaseSource)
	}

	log, closeLog, err := i.openLog(domain.PhaseSource, out)
	if err != nil {
		return i.fail(domain.PhaseSource, domain.ErrSourceFetch, err)
	}
	defer closeLog()

	if err := os.RemoveAll(i.layout.Source); err != nil {
		return i.fail(domain.PhaseSource, domain.ErrSourceFetch, zerr.Wrap(err, "failed to clear source directory"))
	}
	if err := os.MkdirAll(i.layout.Root, domain.DirPerm); err != nil {
		return i.fail(domain.PhaseSource, domain.ErrSourceFetch, zerr.Wrap(err, "failed to create instance directory"))
	}

	err = i.deps.Fetcher.Fetch(ctx, ports.FetchRequest{
		Source:    i.recipe.Source,
		RecipeDir: i.recipe.Dir,
		Dest:      i.layout.Source,
		Exports:   i.recipe.Exports,
		Log:       log,
	})
	if err != nil {
		return i.fail(domain.PhaseSource, domain.ErrSourceFetch, err)
	}
	return i.advance(domain.PhaseSource)
}

// Configure hands the definitions to the build system. Calling it again
// with the same inputs does nothing.
func (i *Instance) Configure(ctx context.Context, prefixPaths []string, out io.Writer) error {
	if i.failed == nil && i.phase == domain.PhaseConfigure && equalPaths(i.prefixes, prefixPaths) {
		i.deps.Logger.Debug(i.recipe.Name + " is already configured")
		return nil
	}
	if err := i.check(domain.PhaseConfigure, domain.PhaseSource); err != nil {
		return err
	}

	prev, err := i.deps.Store.Get(i.root, i.id)
	if err == nil && prev != nil && prev.Fingerprint != "" && prev.Fingerprint != i.defs.Fingerprint() {
		cause := zerr.With(zerr.New("build tree was configured with different definitions"), "recorded", prev.Fingerprint)
		cause = zerr.With(cause, "requested", i.defs.Fingerprint())
		return i.fail(domain.PhaseConfigure, domain.ErrConfiguration, cause)
	}

	log, closeLog, err := i.openLog(domain.PhaseConfigure, out)
	if err != nil {
		return i.fail(domain.PhaseConfigure, domain.ErrBuild, err)
	}
	defer closeLog()

	err = i.deps.BuildSystem.Configure(ctx, ports.ConfigureRequest{
		Recipe:      i.recipe.Name,
		Settings:    i.settings,
		Definitions: i.defs,
		Prefix:      i.recipe.DefinitionPrefix,
		Layout:      i.layout,
		SourceDir:   filepath.Join(i.layout.Source, i.recipe.Source.Subdir),
		PrefixPaths: prefixPaths,
		Log:         log,
	})
	if err != nil {
		return i.fail(domain.PhaseConfigure, domain.ErrBuild, err)
	}

	i.prefixes = append([]string(nil), prefixPaths...)
	return i.advance(domain.PhaseConfigure)
}

// Build compiles the configured tree. A failure carries the tool's exit
// status and the log reference.
func (i *Instance) Build(ctx context.Context, toolPaths []string, out io.Writer) error {
	if err := i.check(domain.PhaseBuild, domain.PhaseConfigure); err != nil {
		return err
	}

	log, closeLog, err := i.openLog(domain.PhaseBuild, out)
	if err != nil {
		return i.fail(domain.PhaseBuild, domain.ErrBuild, err)
	}
	defer closeLog()

	err = i.deps.BuildSystem.Build(ctx, ports.BuildRequest{
		Recipe:    i.recipe.Name,
		Settings:  i.settings,
		Layout:    i.layout,
		ToolPaths: toolPaths,
		Log:       log,
	})
	if err != nil {
		return i.fail(domain.PhaseBuild, domain.ErrBuild, err)
	}
	return i.advance(domain.PhaseBuild)
}

// Package installs the build products into the install root. It may run
// again as long as the build tree still exists.
func (i *Instance) Package(ctx context.Context, out io.Writer) error {
	if err := i.check(domain.PhasePackage, domain.PhaseBuild, domain.PhasePackage, domain.PhasePackageInfo); err != nil {
		return err
	}

	if !dirExists(i.layout.Build) {
		return i.fail(domain.PhasePackage, domain.ErrPackage, domain.Tag(domain.ErrMissingBuildOutput, "path", i.layout.Build))
	}

	log, closeLog, err := i.openLog(domain.PhasePackage, out)
	if err != nil {
		return i.fail(domain.PhasePackage, domain.ErrPackage, err)
	}
	defer closeLog()

	err = i.deps.BuildSystem.Install(ctx, ports.BuildRequest{
		Recipe:   i.recipe.Name,
		Settings: i.settings,
		Layout:   i.layout,
		Log:      log,
	})
	if err != nil {
		return i.fail(domain.PhasePackage, domain.ErrPackage, err)
	}

	for _, dir := range i.recipe.Package.IncludeDirs {
		if !dirExists(filepath.Join(i.layout.Install, dir)) {
			return i.fail(domain.PhasePackage, domain.ErrPackage, domain.Tag(domain.ErrMissingIncludeDir, "include_dir", dir))
		}
	}

	i.artifact = nil
	return i.advance(domain.PhasePackage)
}

// PackageInfo publishes the artifact of the install layout.
func (i *Instance) PackageInfo(_ context.Context) (domain.Artifact, error) {
	if err := i.check(domain.PhasePackageInfo, domain.PhasePackage, domain.PhasePackageInfo); err != nil {
		return domain.Artifact{}, err
	}

	artifact, err := i.deps.Publisher.Publish(i.recipe.Ref(), i.layout.Install, i.recipe.Package)
	if err != nil {
		return domain.Artifact{}, i.fail(domain.PhasePackageInfo, domain.ErrDiscovery, err)
	}

	i.artifact = &artifact
	if err := i.advance(domain.PhasePackageInfo); err != nil {
		return domain.Artifact{}, err
	}
	return artifact, nil
}

// check returns an error unless the instance is alive and its last
// completed phase is one of allowed.
func (i *Instance) check(requested domain.Phase, allowed ...domain.Phase) error {
	if i.failed != nil {
		re := domain.NewRecipeError(domain.ErrInstanceTerminated, nil)
		re.Recipe = i.recipe.Name
		re.Phase = requested
		return re
	}
	for _, p := range allowed {
		if i.phase == p {
			return nil
		}
	}
	cause := zerr.With(errPredecessor, "requested", requested.String())
	cause = zerr.With(cause, "completed", i.phase.String())
	re := domain.NewRecipeError(domain.ErrPhaseOrder, cause)
	re.Recipe = i.recipe.Name
	re.Phase = requested
	return re
}

func (i *Instance) advance(p domain.Phase) error {
	i.phase = p

	info := domain.BuildInfo{
		Recipe:      i.recipe.Name,
		Version:     i.recipe.Version,
		InstanceID:  i.id,
		Phase:       p,
		Settings:    i.settings,
		Options:     i.options.Map(),
		Definitions: i.defs.Entries(),
		Fingerprint: i.defs.Fingerprint(),
		Layout:      i.layout,
		Artifact:    i.artifact,
		Timestamp:   time.Now(),
	}
	if i.artifact != nil && i.deps.Hasher != nil {
		hash, err := i.deps.Hasher.HashTree(i.layout.Install)
		if err != nil {
			i.deps.Logger.Warn(fmt.Sprintf("failed to hash install tree of %s: %v", i.recipe.Name, err))
		}
		info.InstallHash = hash
	}

	if err := i.deps.Store.Put(i.root, info); err != nil {
		i.deps.Logger.Warn(fmt.Sprintf("failed to record %s of %s: %v", p, i.recipe.Name, err))
	}
	return nil
}

// fail terminates the instance. err becomes the cause of a RecipeError of
// the given kind unless it already is one.
func (i *Instance) fail(phase domain.Phase, kind, err error) error {
	var re *domain.RecipeError
	if !errors.As(err, &re) {
		re = domain.NewRecipeError(kind, err)
	} else {
		cp := *re
		re = &cp
	}
	re.Recipe = i.recipe.Name
	re.Phase = phase
	if code, ok := domain.ExitCode(err); ok {
		re.ExitCode = code
	}
	if phase != domain.PhasePackageInfo && re.Kind != domain.ErrConfiguration {
		re.LogRef = i.logRef
	}

	i.failed = re
	return re
}

// openLog opens the instance's tool log for appending and returns a writer
// that feeds both the log and out.
func (i *Instance) openLog(phase domain.Phase, out io.Writer) (io.Writer, func(), error) {
	path := filepath.Join(i.root, i.logRef)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to create log directory"), "path", path)
	}
	//nolint:gosec // path is below the workspace root
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.FilePerm)
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to open log"), "path", path)
	}
	_, _ = fmt.Fprintf(f, "==> %s %s\n", i.recipe.Name, phase)

	if out == nil {
		return f, func() { _ = f.Close() }, nil
	}
	return io.MultiWriter(f, out), func() { _ = f.Close() }, nil
}

func configurationError(err error, recipe string) error {
	if _, ok := domain.AsRecipeError(err); !ok {
		err = domain.NewRecipeError(domain.ErrConfiguration, err)
	}
	return domain.Attribute(err, recipe, domain.PhaseConfigure)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
