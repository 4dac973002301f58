package domain

import (
	"slices"
	"strings"
)

// Toggle is one named capability switch of a component build. The set of
// toggles is closed: names outside it are rejected, never ignored.
type Toggle uint8

// ToggleGroup classifies a toggle.
type ToggleGroup uint8

// Toggle groups.
const (
	GroupSubsystem ToggleGroup = iota
	GroupBinding
	GroupProtocol
)

func (g ToggleGroup) String() string {
	switch g {
	case GroupSubsystem:
		return "subsystem"
	case GroupBinding:
		return "binding"
	case GroupProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Subsystems.
const (
	ToggleCore Toggle = iota
	ToggleDataflow
	ToggleEditor
	ToggleGfx
	TogglePCH
	ToggleDNSSD

	// Bindings.
	ToggleBindingC
	ToggleBindingCppOnly
	ToggleBindingJava
	ToggleBindingPD
	ToggleBindingMax
	ToggleBindingPython
	ToggleBindingQt
	ToggleBindingQML
	ToggleBindingQMLScore
	ToggleBindingQMLDevice
	ToggleBindingUnity3D

	// Protocols.
	ToggleProtocolAudio
	ToggleProtocolMIDI
	ToggleProtocolOSC
	ToggleProtocolMinuit
	ToggleProtocolOSCQuery
	ToggleProtocolHTTP
	ToggleProtocolWebSockets
	ToggleProtocolSerial
	ToggleProtocolPhidgets
	ToggleProtocolLeapMotion
	ToggleProtocolJoystick
	ToggleProtocolWiimote
	ToggleProtocolArtNet
	ToggleProtocolLibmapper

	toggleCount
)

type toggleInfo struct {
	name  string
	cache string
	group ToggleGroup
}

var toggles = [toggleCount]toggleInfo{
	ToggleCore:     {"CORE", "CPP", GroupSubsystem},
	ToggleDataflow: {"DATAFLOW", "DATAFLOW", GroupSubsystem},
	ToggleEditor:   {"EDITOR", "EDITOR", GroupSubsystem},
	ToggleGfx:      {"GFX", "GFX", GroupSubsystem},
	TogglePCH:      {"PCH", "PCH", GroupSubsystem},
	ToggleDNSSD:    {"DNSSD", "DNSSD", GroupSubsystem},

	ToggleBindingC:         {"BINDING_C", "C", GroupBinding},
	ToggleBindingCppOnly:   {"BINDING_CPP_ONLY", "CPP_ONLY", GroupBinding},
	ToggleBindingJava:      {"BINDING_JAVA", "JAVA", GroupBinding},
	ToggleBindingPD:        {"BINDING_PD", "PD", GroupBinding},
	ToggleBindingMax:       {"BINDING_MAX", "MAX", GroupBinding},
	ToggleBindingPython:    {"BINDING_PYTHON", "PYTHON", GroupBinding},
	ToggleBindingQt:        {"BINDING_QT", "QT", GroupBinding},
	ToggleBindingQML:       {"BINDING_QML", "QML", GroupBinding},
	ToggleBindingQMLScore:  {"BINDING_QML_SCORE", "QML_SCORE", GroupBinding},
	ToggleBindingQMLDevice: {"BINDING_QML_DEVICE", "QML_DEVICE", GroupBinding},
	ToggleBindingUnity3D:   {"BINDING_UNITY3D", "UNITY3D", GroupBinding},

	ToggleProtocolAudio:      {"PROTOCOL_AUDIO", "PROTOCOL_AUDIO", GroupProtocol},
	ToggleProtocolMIDI:       {"PROTOCOL_MIDI", "PROTOCOL_MIDI", GroupProtocol},
	ToggleProtocolOSC:        {"PROTOCOL_OSC", "PROTOCOL_OSC", GroupProtocol},
	ToggleProtocolMinuit:     {"PROTOCOL_MINUIT", "PROTOCOL_MINUIT", GroupProtocol},
	ToggleProtocolOSCQuery:   {"PROTOCOL_OSCQUERY", "PROTOCOL_OSCQUERY", GroupProtocol},
	ToggleProtocolHTTP:       {"PROTOCOL_HTTP", "PROTOCOL_HTTP", GroupProtocol},
	ToggleProtocolWebSockets: {"PROTOCOL_WEBSOCKETS", "PROTOCOL_WEBSOCKETS", GroupProtocol},
	ToggleProtocolSerial:     {"PROTOCOL_SERIAL", "PROTOCOL_SERIAL", GroupProtocol},
	ToggleProtocolPhidgets:   {"PROTOCOL_PHIDGETS", "PROTOCOL_PHIDGETS", GroupProtocol},
	ToggleProtocolLeapMotion: {"PROTOCOL_LEAPMOTION", "PROTOCOL_LEAPMOTION", GroupProtocol},
	ToggleProtocolJoystick:   {"PROTOCOL_JOYSTICK", "PROTOCOL_JOYSTICK", GroupProtocol},
	ToggleProtocolWiimote:    {"PROTOCOL_WIIMOTE", "PROTOCOL_WIIMOTE", GroupProtocol},
	ToggleProtocolArtNet:     {"PROTOCOL_ARTNET", "PROTOCOL_ARTNET", GroupProtocol},
	ToggleProtocolLibmapper:  {"PROTOCOL_LIBMAPPER", "PROTOCOL_LIBMAPPER", GroupProtocol},
}

// AllToggles returns every toggle in vocabulary order.
func AllToggles() []Toggle {
	out := make([]Toggle, toggleCount)
	for i := range out {
		out[i] = Toggle(i)
	}
	return out
}

// ParseToggle returns the toggle with the given name. Matching is exact.
func ParseToggle(name string) (Toggle, error) {
	for i, info := range toggles {
		if info.name == name {
			return Toggle(i), nil
		}
	}
	return 0, configurationError(Tag(ErrUnknownToggle, "toggle", name))
}

func (t Toggle) String() string {
	if !t.valid() {
		return "UNKNOWN"
	}
	return toggles[t].name
}

// CacheName returns the build-system variable suffix for the toggle.
func (t Toggle) CacheName() string {
	if !t.valid() {
		return ""
	}
	return toggles[t].cache
}

// Group returns the toggle's group.
func (t Toggle) Group() ToggleGroup {
	if !t.valid() {
		return GroupSubsystem
	}
	return toggles[t].group
}

func (t Toggle) valid() bool {
	return t < toggleCount
}

// FlagSet assigns a boolean to every toggle. The zero value has every toggle off.
type FlagSet struct {
	bits uint64
}

// NewFlagSet returns a flag set with exactly the given toggles on.
func NewFlagSet(on ...Toggle) FlagSet {
	var f FlagSet
	for _, t := range on {
		f = f.Set(t, true)
	}
	return f
}

// Enabled reports whether t is on.
func (f FlagSet) Enabled(t Toggle) bool {
	return t.valid() && f.bits&(1<<t) != 0
}

// Set returns a copy of f with t switched on or off.
func (f FlagSet) Set(t Toggle, on bool) FlagSet {
	if !t.valid() {
		return f
	}
	if on {
		f.bits |= 1 << t
	} else {
		f.bits &^= 1 << t
	}
	return f
}

// With returns a copy of f with the named overrides applied.
// Unknown toggle names are configuration errors.
func (f FlagSet) With(overrides map[string]bool) (FlagSet, error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		t, err := ParseToggle(name)
		if err != nil {
			return FlagSet{}, err
		}
		f = f.Set(t, overrides[name])
	}
	return f, nil
}

// Validate enforces the structural rule of the vocabulary: a binding can only
// be built on top of the core subsystem.
func (f FlagSet) Validate() error {
	if f.Enabled(ToggleCore) {
		return nil
	}
	var bindings []string
	for _, t := range AllToggles() {
		if t.Group() == GroupBinding && f.Enabled(t) {
			bindings = append(bindings, t.String())
		}
	}
	if len(bindings) > 0 {
		return configurationError(Tag(ErrBindingWithoutCore, "bindings", strings.Join(bindings, ",")))
	}
	return nil
}

// EnabledToggles returns the toggles that are on, in vocabulary order.
func (f FlagSet) EnabledToggles() []Toggle {
	var out []Toggle
	for _, t := range AllToggles() {
		if f.Enabled(t) {
			out = append(out, t)
		}
	}
	return out
}

// Preset names a predefined flag set.
type Preset string

// Presets.
const (
	PresetEmbeddable Preset = "embeddable"
	PresetFull       Preset = "full"
)

// DefaultPreset is used when a recipe names no preset.
const DefaultPreset = PresetEmbeddable

// ParsePreset validates a preset name. The empty name selects DefaultPreset.
func ParsePreset(name string) (Preset, error) {
	switch Preset(name) {
	case "":
		return DefaultPreset, nil
	case PresetEmbeddable, PresetFull:
		return Preset(name), nil
	default:
		return "", configurationError(Tag(ErrUnknownPreset, "preset", name))
	}
}

// Flags returns the flag set of the preset.
func (p Preset) Flags() FlagSet {
	switch p {
	case PresetFull:
		var f FlagSet
		for _, t := range AllToggles() {
			f = f.Set(t, t != ToggleBindingCppOnly)
		}
		return f
	default:
		return NewFlagSet(
			ToggleCore,
			ToggleDNSSD,
			ToggleProtocolOSC,
			ToggleProtocolOSCQuery,
			ToggleBindingCppOnly,
		)
	}
}
