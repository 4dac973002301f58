package domain

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Workspace is a loaded set of recipes together with the host profile and the
// option overrides requested for them.
type Workspace struct {
	// Root is the directory holding kiln.work.yaml or kiln.yaml.
	Root  string
	Graph *Graph

	// Profile overrides host settings by key (os, compiler, build_type, arch).
	Profile map[string]string

	// Options holds per-recipe option overrides, keyed by recipe name.
	Options map[string]map[string]string

	// Preset replaces every recipe's preset when set.
	Preset Preset
}

// Settings returns the host settings with the profile applied.
func (w *Workspace) Settings() (Settings, error) {
	s := HostSettings()
	for _, key := range slices.Sorted(maps.Keys(w.Profile)) {
		var err error
		s, err = s.With(key, w.Profile[key])
		if err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// SetOption records an override requested for one recipe option.
func (w *Workspace) SetOption(recipe, option, value string) {
	if w.Options == nil {
		w.Options = make(map[string]map[string]string)
	}
	if w.Options[recipe] == nil {
		w.Options[recipe] = make(map[string]string)
	}
	w.Options[recipe][option] = value
}

// Overrides returns the option overrides of the named recipe: the requested
// values merged with the values its dependents force. A requested value that
// disagrees with a forced one is a configuration error.
func (w *Workspace) Overrides(name string) (map[string]string, error) {
	r, ok := w.Graph.Recipe(name)
	if !ok {
		return nil, Tag(ErrRecipeNotFound, "recipe", name)
	}

	out := maps.Clone(w.Options[name])
	if out == nil {
		out = make(map[string]string)
	}

	forced := w.Graph.ForcedOptions(name)
	for _, opt := range slices.Sorted(maps.Keys(forced)) {
		value := forced[opt]
		if requested, ok := out[opt]; ok {
			o, _ := r.Options.Lookup(opt)
			normalized, valid := o.Domain.Normalize(requested)
			if !valid {
				err := Tag(ErrInvalidOptionValue, "option", opt)
				return nil, configurationError(zerr.With(err, "value", requested))
			}
			if normalized != value {
				err := Tag(ErrConflictingOverride, "recipe", name)
				err = zerr.With(err, "option", opt)
				err = zerr.With(err, "forced_by", w.Graph.ForcedBy(name, opt)+"="+value)
				return nil, configurationError(zerr.With(err, "conflicts_with", "request="+requested))
			}
		}
		out[opt] = value
	}
	return out, nil
}

// EffectivePreset returns the preset the named recipe is configured with.
func (w *Workspace) EffectivePreset(r *Recipe) Preset {
	if w.Preset != "" {
		return w.Preset
	}
	return r.Preset
}
