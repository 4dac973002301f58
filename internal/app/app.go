// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/kiln/internal/adapters/cmake"     //nolint:depguard // Cache variable names for display
	"go.trai.ch/kiln/internal/adapters/detector"  //nolint:depguard // Output mode selected per run
	"go.trai.ch/kiln/internal/adapters/linear"    //nolint:depguard // Renderer constructed per run
	"go.trai.ch/kiln/internal/adapters/telemetry" //nolint:depguard // Tracer constructed per run
	"go.trai.ch/kiln/internal/adapters/tui"       //nolint:depguard // Renderer constructed per run
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/lifecycle"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	deps         lifecycle.Deps
	stdout       io.Writer
	stderr       io.Writer
	teaOptions   []tea.ProgramOption
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, log ports.Logger, deps lifecycle.Deps) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		deps:         deps,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// WithOutput redirects tool output and reports. Used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithTeaOptions adds options for the interactive renderer's program.
// Used for testing to detach it from the terminal.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// SetVerbose enables debug logging when the logger supports it.
func (a *App) SetVerbose(enable bool) {
	if v, ok := a.logger.(interface{ SetVerbose(bool) }); ok {
		v.SetVerbose(enable)
	}
}

// SetJSON switches the logger to JSON output when it supports it.
func (a *App) SetJSON(enable bool) {
	if j, ok := a.logger.(interface{ SetJSON(bool) }); ok {
		j.SetJSON(enable)
	}
}

// Request carries the configuration requested on the command line.
type Request struct {
	// Options are option overrides of the form name:option=value.
	Options []string
	// Settings are profile settings of the form key=value.
	Settings []string
	// Preset replaces the preset of every recipe when set.
	Preset string
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	Request
	Parallelism int
	// OutputMode is auto, tui or linear. Auto picks the interactive renderer
	// on a terminal outside CI.
	OutputMode string
}

// PackageOptions configuration for the Package method.
type PackageOptions struct {
	Request
	OutputMode string
}

// Build runs the lifecycle of the targets and their dependencies. The target
// "all" builds every recipe of the workspace.
func (a *App) Build(ctx context.Context, targets []string, opts BuildOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	mode, err := detector.ParseMode(opts.OutputMode)
	if err != nil {
		return err
	}

	ws, err := a.load(opts.Request)
	if err != nil {
		return err
	}

	return a.render(ctx, mode, func(ctx context.Context, tracer ports.Tracer) error {
		sched := scheduler.NewScheduler(a.deps, tracer)
		report, err := sched.Run(ctx, ws, targets, opts.Parallelism)
		if report == nil {
			return err
		}
		if blocked := report.Blocked(); len(blocked) > 0 {
			a.logger.Warn(fmt.Sprintf("%d recipe(s) blocked: %s", len(blocked), strings.Join(blocked, ", ")))
		}
		if err != nil {
			return errors.Join(domain.ErrGraphExecutionFailed, err)
		}
		a.logger.Debug(fmt.Sprintf("built %d recipe(s)", len(report.Order)))
		return nil
	})
}

// Package installs and publishes the named recipe again from its recorded
// successful build, without rebuilding.
func (a *App) Package(ctx context.Context, name string, opts PackageOptions) error {
	mode, err := detector.ParseMode(opts.OutputMode)
	if err != nil {
		return err
	}

	ws, err := a.load(opts.Request)
	if err != nil {
		return err
	}

	inst, err := a.instance(ws, name)
	if err != nil {
		return err
	}
	if err := inst.Restore(); err != nil {
		return err
	}

	var artifact domain.Artifact
	err = a.render(ctx, mode, func(ctx context.Context, tracer ports.Tracer) error {
		ctx, span := tracer.Start(ctx, name, ports.WithAttribute(ports.AttrRecipe, name))
		defer span.End()

		err := runPhase(ctx, tracer, name, domain.PhasePackage, func(out io.Writer) error {
			return inst.Package(ctx, out)
		})
		if err == nil {
			err = runPhase(ctx, tracer, name, domain.PhasePackageInfo, func(io.Writer) error {
				var perr error
				artifact, perr = inst.PackageInfo(ctx)
				return perr
			})
		}
		if err != nil {
			span.RecordError(err)
			return errors.Join(domain.ErrGraphExecutionFailed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	printArtifact(a.stdout, artifact)
	return nil
}

// Options prints the option schema of the named recipe, the values it
// resolves to and the resulting build definitions.
func (a *App) Options(_ context.Context, name string, req Request) error {
	ws, err := a.load(req)
	if err != nil {
		return err
	}

	inst, err := a.instance(ws, name)
	if err != nil {
		return err
	}
	r := inst.Recipe()

	_, _ = fmt.Fprintf(a.stdout, "%s (preset %s, instance %s)\n",
		r.Ref(), presetName(ws.EffectivePreset(r)), domain.InstanceDirName(r.Ref(), inst.ID()))

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\nOptions:")
	for _, o := range r.Options.Options() {
		value, ok := inst.Options().Get(o.Name)
		if !ok {
			value = "(pruned)"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", o.Name, value, o.Domain)
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintln(tw, "\nDefinitions:")
	for _, d := range inst.Definitions().Entries() {
		value := d.Value
		if d.Kind == domain.DefinitionBool {
			value = "OFF"
			if d.Bool() {
				value = "ON"
			}
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", cmake.CacheVariable(r.DefinitionPrefix, d.Name), value)
	}
	return tw.Flush()
}

// Graph prints the recipes of the workspace in execution order with their
// requirements.
func (a *App) Graph(_ context.Context) error {
	ws, err := a.load(Request{})
	if err != nil {
		return err
	}

	for r := range ws.Graph.Walk() {
		_, _ = fmt.Fprintln(a.stdout, r.Ref())
		external := ws.Graph.External(r.Name)
		for _, req := range r.Requirements {
			suffix := ""
			if slices.ContainsFunc(external, func(e domain.Requirement) bool { return e.Ref == req.Ref }) {
				suffix = " (external)"
			}
			_, _ = fmt.Fprintf(a.stdout, "  %s %s%s\n", req.Kind, req.Ref, suffix)
		}
	}
	return nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Instances bool
	Store     bool
	Logs      bool
}

// Clean removes instance directories, build records and logs of the
// workspace.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	root, err := a.configLoader.DiscoverRoot(".")
	if err != nil {
		return zerr.Wrap(err, "failed to locate workspace")
	}

	var errs error

	// Helper to remove a directory and log the action
	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(filepath.Join(root, path)); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Instances {
		remove(domain.DefaultInstancesPath(), "recipe instances")
	}
	if options.Store {
		remove(domain.DefaultStorePath(), "build info store")
	}
	if options.Logs {
		remove(domain.DefaultLogsPath(), "build logs")
	}

	return errs
}

// load reads the workspace and applies the request to it.
func (a *App) load(req Request) (*domain.Workspace, error) {
	ws, err := a.configLoader.Load(".")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	for _, raw := range req.Options {
		name, option, value, err := parseOptionFlag(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := ws.Graph.Recipe(name); !ok {
			return nil, domain.Tag(domain.ErrRecipeNotFound, "recipe", name)
		}
		ws.SetOption(name, option, value)
	}

	for _, raw := range req.Settings {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" || value == "" {
			return nil, domain.Tag(domain.ErrInvalidSettingFlag, "setting", raw)
		}
		if ws.Profile == nil {
			ws.Profile = make(map[string]string)
		}
		ws.Profile[key] = value
	}
	if _, err := ws.Settings(); err != nil {
		return nil, err
	}

	if req.Preset != "" {
		preset, err := domain.ParsePreset(req.Preset)
		if err != nil {
			return nil, err
		}
		ws.Preset = preset
	}

	return ws, nil
}

// instance resolves the named recipe against the workspace.
func (a *App) instance(ws *domain.Workspace, name string) (*lifecycle.Instance, error) {
	r, ok := ws.Graph.Recipe(name)
	if !ok {
		return nil, domain.Tag(domain.ErrRecipeNotFound, "recipe", name)
	}
	settings, err := ws.Settings()
	if err != nil {
		return nil, err
	}
	overrides, err := ws.Overrides(name)
	if err != nil {
		return nil, domain.Attribute(err, name, domain.PhaseConfigure)
	}
	return lifecycle.New(a.deps, lifecycle.Config{
		Root:      ws.Root,
		Recipe:    r,
		Settings:  settings,
		Overrides: overrides,
		Preset:    ws.EffectivePreset(r),
	})
}

// render runs fn while a renderer presents the spans of tracer. mode and the
// environment pick the interactive or the linear renderer.
func (a *App) render(ctx context.Context, mode detector.OutputMode, fn func(context.Context, ports.Tracer) error) error {
	var renderer ports.Renderer
	if detector.ResolveMode(detector.DetectEnvironment(a.stdout), mode) == detector.ModeTUI {
		model := tui.NewModel(a.stdout)
		opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(a.stdout)}, a.teaOptions...)
		renderer = tui.NewRenderer(&model, opts...)
	} else {
		renderer = linear.NewRenderer(a.stdout, a.stderr)
	}
	tracer := telemetry.NewOTelTracer("kiln", renderer)
	defer func() {
		_ = tracer.Shutdown(context.WithoutCancel(ctx))
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		return fn(ctx, tracer)
	})

	return g.Wait()
}

func runPhase(ctx context.Context, tracer ports.Tracer, recipe string, phase domain.Phase, run func(io.Writer) error) error {
	_, span := tracer.Start(ctx, phase.String(),
		ports.WithAttribute(ports.AttrRecipe, recipe),
		ports.WithAttribute(ports.AttrPhase, phase.String()),
	)
	defer span.End()

	if err := run(span); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func parseOptionFlag(raw string) (name, option, value string, err error) {
	name, rest, ok := strings.Cut(raw, ":")
	if ok {
		option, value, ok = strings.Cut(rest, "=")
	}
	if !ok || name == "" || option == "" || value == "" {
		return "", "", "", domain.Tag(domain.ErrInvalidOptionFlag, "option", raw)
	}
	return name, option, value, nil
}

func presetName(p domain.Preset) string {
	if p == "" {
		return string(domain.DefaultPreset)
	}
	return string(p)
}

func printArtifact(w io.Writer, artifact domain.Artifact) {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	_, _ = fmt.Fprintln(tw, artifact.Ref)
	_, _ = fmt.Fprintf(tw, "  root:\t%s\n", artifact.Root)
	_, _ = fmt.Fprintf(tw, "  libs:\t%s\n", strings.Join(artifact.Libs, ", "))
	_, _ = fmt.Fprintf(tw, "  include dirs:\t%s\n", strings.Join(artifact.IncludeDirs, ", "))
	_ = tw.Flush()
}
