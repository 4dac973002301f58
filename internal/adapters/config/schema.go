package config

// Workfile represents the structure of the kiln.work.yaml configuration file.
type Workfile struct {
	Root    string                       `yaml:"root"`
	Recipes []string                     `yaml:"recipes"`
	Preset  string                       `yaml:"preset"`
	Profile map[string]string            `yaml:"profile"`
	Options map[string]map[string]string `yaml:"options"`
}

// Recipefile represents the structure of the kiln.yaml configuration file.
type Recipefile struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	License     string   `yaml:"license"`
	URL         string   `yaml:"url"`
	Description string   `yaml:"description"`
	Topics      []string `yaml:"topics"`

	Settings []string    `yaml:"settings"`
	Options  []OptionDTO `yaml:"options"`

	Preset           string          `yaml:"preset"`
	Toggles          map[string]bool `yaml:"toggles"`
	DefinitionPrefix string          `yaml:"definitionPrefix"`
	Bindings         []BindingDTO    `yaml:"bindings"`

	Source     SourceDTO `yaml:"source"`
	Exports    []string  `yaml:"exports"`
	Generators []string  `yaml:"generators"`

	Requires     []RequirementDTO `yaml:"requires"`
	ToolRequires []string         `yaml:"toolRequires"`
	Package      PackageDTO       `yaml:"package"`
}

// OptionDTO declares one recipe option. An option without values is boolean.
type OptionDTO struct {
	Name    string   `yaml:"name"`
	Values  []string `yaml:"values"`
	Default string   `yaml:"default"`
}

// BindingDTO forwards an option value to a build variable.
type BindingDTO struct {
	Option   string `yaml:"option"`
	Variable string `yaml:"variable"`
}

// SourceDTO tells where the source of a recipe comes from.
type SourceDTO struct {
	Git    string `yaml:"git"`
	Ref    string `yaml:"ref"`
	Subdir string `yaml:"subdir"`
	Path   string `yaml:"path"`
}

// RequirementDTO is one linked dependency.
type RequirementDTO struct {
	Ref     string            `yaml:"ref"`
	Options map[string]string `yaml:"options"`
}

// PackageDTO declares the packaged output.
type PackageDTO struct {
	Libs        []string `yaml:"libs"`
	IncludeDirs []string `yaml:"includeDirs"`
}
