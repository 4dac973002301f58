package domain

import "strings"

// Phase is one step of the recipe lifecycle. Phases are totally ordered.
type Phase int

// Lifecycle phases in execution order.
const (
	PhaseNone Phase = iota
	PhaseSource
	PhaseConfigure
	PhaseBuild
	PhasePackage
	PhasePackageInfo
)

var phaseNames = [...]string{
	PhaseNone:        "none",
	PhaseSource:      "source",
	PhaseConfigure:   "configure",
	PhaseBuild:       "build",
	PhasePackage:     "package",
	PhasePackageInfo: "package_info",
}

func (p Phase) String() string {
	if p < PhaseNone || p > PhasePackageInfo {
		return "unknown"
	}
	return phaseNames[p]
}

// ParsePhase returns the phase with the given name.
func ParsePhase(name string) (Phase, error) {
	for i, n := range phaseNames {
		if strings.EqualFold(n, name) {
			return Phase(i), nil
		}
	}
	return PhaseNone, Tag(ErrUnknownPhase, "phase", name)
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase from its name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
