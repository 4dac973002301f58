// Package config provides the recipe and workspace loader for kiln.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Mode represents the configuration mode of kiln.
type Mode string

const (
	// ModeWorkspace indicates that kiln has a workfile.
	ModeWorkspace Mode = "workspace"
	// ModeStandalone indicates that kiln has only one recipe file.
	ModeStandalone Mode = "standalone"
)

// Load reads the configuration found from cwd and returns the workspace with
// its validated recipe graph.
func (l *Loader) Load(cwd string) (*domain.Workspace, error) {
	configPath, mode, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var ws *domain.Workspace
	switch mode {
	case ModeStandalone:
		ws, err = l.loadRecipefile(configPath)
	case ModeWorkspace:
		ws, err = l.loadWorkfile(configPath)
	default:
		return nil, domain.Tag(domain.ErrConfigNotFound, "mode", mode)
	}
	if err != nil {
		return nil, err
	}

	if err := ws.Graph.Validate(); err != nil {
		return nil, err
	}
	if _, err := ws.Settings(); err != nil {
		return nil, zerr.With(err, "file", configPath)
	}

	l.Logger.Debug(fmt.Sprintf("loaded %d recipe(s) from %s", ws.Graph.Len(), configPath))
	return ws, nil
}

// DiscoverRoot walks up from cwd to find the workspace root.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	configPath, _, err := l.findConfiguration(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Dir(configPath), nil
}

func (l *Loader) findConfiguration(cwd string) (string, Mode, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", "", zerr.Wrap(err, "failed to resolve working directory")
	}
	var standaloneCandidate string

	for {
		workfilePath := filepath.Join(currentDir, domain.WorkFileName)
		if _, err := os.Stat(workfilePath); err == nil {
			return workfilePath, ModeWorkspace, nil
		}

		if standaloneCandidate == "" {
			recipePath := filepath.Join(currentDir, domain.RecipeFileName)
			if _, err := os.Stat(recipePath); err == nil {
				standaloneCandidate = recipePath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	if standaloneCandidate != "" {
		return standaloneCandidate, ModeStandalone, nil
	}

	return "", "", domain.Tag(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) loadRecipefile(configPath string) (*domain.Workspace, error) {
	var recipefile Recipefile
	if err := readAndUnmarshalYAML(configPath, &recipefile); err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)
	r, err := buildRecipe(&recipefile, root)
	if err != nil {
		return nil, zerr.With(err, "file", configPath)
	}

	g := domain.NewGraph()
	if err := g.AddRecipe(r); err != nil {
		return nil, err
	}

	return &domain.Workspace{Root: root, Graph: g}, nil
}

func (l *Loader) loadWorkfile(configPath string) (*domain.Workspace, error) {
	var workfile Workfile
	if err := readAndUnmarshalYAML(configPath, &workfile); err != nil {
		return nil, err
	}

	root := resolveRoot(configPath, workfile.Root)
	ws := &domain.Workspace{
		Root:    root,
		Graph:   domain.NewGraph(),
		Profile: maps.Clone(workfile.Profile),
	}

	if workfile.Preset != "" {
		preset, err := domain.ParsePreset(workfile.Preset)
		if err != nil {
			return nil, zerr.With(err, "file", configPath)
		}
		ws.Preset = preset
	}

	recipePaths, err := resolveRecipePaths(root, workfile.Recipes)
	if err != nil {
		return nil, err
	}

	recipeFiles := make(map[string]string)
	for _, dir := range recipePaths {
		if err := l.processRecipeDir(ws.Graph, root, dir, recipeFiles); err != nil {
			return nil, err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(workfile.Options)) {
		if _, ok := ws.Graph.Recipe(name); !ok {
			err := domain.Tag(domain.ErrRecipeNotFound, "recipe", name)
			return nil, zerr.With(err, "file", configPath)
		}
		for opt, value := range workfile.Options[name] {
			ws.SetOption(name, opt, value)
		}
	}

	return ws, nil
}

func resolveRecipePaths(root string, patterns []string) ([]string, error) {
	paths := make(map[string]struct{})

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, zerr.Wrap(err, "glob pattern failed: "+pattern)
		}
		for _, match := range matches {
			paths[match] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(paths)), nil
}

func (l *Loader) processRecipeDir(g *domain.Graph, root, dir string, recipeFiles map[string]string) error {
	relPath, _ := filepath.Rel(root, dir)

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	recipePath := filepath.Join(dir, domain.RecipeFileName)
	if _, statErr := os.Stat(recipePath); os.IsNotExist(statErr) {
		l.Logger.Warn(fmt.Sprintf("%s missing in %s, skipping", domain.RecipeFileName, relPath))
		return nil
	}

	var recipefile Recipefile
	if err := readAndUnmarshalYAML(recipePath, &recipefile); err != nil {
		return zerr.With(err, "directory", relPath)
	}

	if existing, exists := recipeFiles[recipefile.Name]; exists && recipefile.Name != "" {
		err := domain.Tag(domain.ErrDuplicateRecipeName, "recipe", recipefile.Name)
		err = zerr.With(err, "first_occurrence", existing)
		return zerr.With(err, "duplicate_at", relPath)
	}

	r, err := buildRecipe(&recipefile, dir)
	if err != nil {
		return zerr.With(err, "directory", relPath)
	}
	recipeFiles[r.Name] = relPath

	return g.AddRecipe(r)
}

// buildRecipe converts a recipe file into a validated domain.Recipe.
func buildRecipe(f *Recipefile, dir string) (*domain.Recipe, error) {
	schema, err := buildOptionSchema(f.Options)
	if err != nil {
		return nil, zerr.With(err, "recipe", f.Name)
	}

	var decl domain.Declarator
	for _, req := range f.Requires {
		if err := decl.Requires(req.Ref, req.Options); err != nil {
			return nil, zerr.With(err, "recipe", f.Name)
		}
	}
	for _, ref := range f.ToolRequires {
		if err := decl.ToolRequires(ref); err != nil {
			return nil, zerr.With(err, "recipe", f.Name)
		}
	}

	bindings := make([]domain.OptionBinding, 0, len(f.Bindings))
	for _, b := range f.Bindings {
		bindings = append(bindings, domain.OptionBinding{Option: b.Option, Variable: b.Variable})
	}

	preset, err := domain.ParsePreset(f.Preset)
	if err != nil {
		return nil, zerr.With(err, "recipe", f.Name)
	}

	generators := f.Generators
	if len(generators) == 0 {
		generators = []string{domain.GeneratorCMake}
	}

	r := &domain.Recipe{
		Name:             f.Name,
		Version:          f.Version,
		License:          f.License,
		URL:              f.URL,
		Description:      f.Description,
		Topics:           f.Topics,
		Dir:              filepath.Clean(dir),
		Settings:         f.Settings,
		Options:          schema,
		Preset:           preset,
		Toggles:          f.Toggles,
		DefinitionPrefix: f.DefinitionPrefix,
		Bindings:         bindings,
		Source: domain.SourceRef{
			Git:    f.Source.Git,
			Ref:    f.Source.Ref,
			Subdir: f.Source.Subdir,
			Path:   f.Source.Path,
		},
		Exports:      f.Exports,
		Generators:   generators,
		Requirements: decl.Requirements(),
		Package: domain.PackageDecl{
			Libs:        f.Package.Libs,
			IncludeDirs: f.Package.IncludeDirs,
		},
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func buildOptionSchema(opts []OptionDTO) (domain.OptionSchema, error) {
	var schema domain.OptionSchema
	for _, o := range opts {
		d := domain.BoolDomain()
		if len(o.Values) > 0 {
			d = domain.EnumDomain(o.Values...)
		}
		def := o.Default
		if def == "" && len(o.Values) > 0 {
			def = o.Values[0]
		} else if def == "" {
			def = domain.ValueFalse
		}

		var err error
		schema, err = schema.Declare(o.Name, d, def)
		if err != nil {
			return domain.OptionSchema{}, err
		}
	}
	return schema, nil
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "file", configPath)
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.With(zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error()), "file", configPath)
	}

	return nil
}
