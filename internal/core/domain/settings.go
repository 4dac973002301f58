package domain

import (
	"runtime"
	"slices"
)

// Settings keys a recipe may declare.
const (
	SettingOS        = "os"
	SettingCompiler  = "compiler"
	SettingBuildType = "build_type"
	SettingArch      = "arch"
)

// Operating systems as they appear in the os setting.
const (
	OSLinux   = "Linux"
	OSWindows = "Windows"
	OSMacos   = "Macos"
	OSFreeBSD = "FreeBSD"
)

// SettingNames lists the settings keys in their canonical order.
var SettingNames = []string{SettingOS, SettingCompiler, SettingBuildType, SettingArch}

// Settings describes the target platform and toolchain of a recipe instance.
type Settings struct {
	OS        string `json:"os,omitzero"`
	Compiler  string `json:"compiler,omitzero"`
	BuildType string `json:"build_type,omitzero"`
	Arch      string `json:"arch,omitzero"`
}

// HostSettings returns the settings of the machine kiln runs on.
func HostSettings() Settings {
	s := Settings{
		BuildType: "Release",
		Arch:      runtime.GOARCH,
	}

	switch runtime.GOOS {
	case "linux":
		s.OS = OSLinux
		s.Compiler = "gcc"
	case "windows":
		s.OS = OSWindows
		s.Compiler = "msvc"
	case "darwin":
		s.OS = OSMacos
		s.Compiler = "apple-clang"
	case "freebsd":
		s.OS = OSFreeBSD
		s.Compiler = "clang"
	default:
		s.OS = runtime.GOOS
	}

	switch runtime.GOARCH {
	case "amd64":
		s.Arch = "x86_64"
	case "arm64":
		s.Arch = "armv8"
	case "386":
		s.Arch = "x86"
	}

	return s
}

// Get returns the value of the named setting.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case SettingOS:
		return s.OS, nil
	case SettingCompiler:
		return s.Compiler, nil
	case SettingBuildType:
		return s.BuildType, nil
	case SettingArch:
		return s.Arch, nil
	default:
		return "", configurationError(Tag(ErrUnknownSetting, "setting", key))
	}
}

// With returns a copy of s with the named setting replaced.
func (s Settings) With(key, value string) (Settings, error) {
	switch key {
	case SettingOS:
		s.OS = value
	case SettingCompiler:
		s.Compiler = value
	case SettingBuildType:
		s.BuildType = value
	case SettingArch:
		s.Arch = value
	default:
		return Settings{}, configurationError(Tag(ErrUnknownSetting, "setting", key))
	}
	return s, nil
}

// Restrict returns a copy of s that keeps only the declared settings keys.
// Undeclared settings do not take part in an instance's identity.
func (s Settings) Restrict(declared []string) Settings {
	var out Settings
	if slices.Contains(declared, SettingOS) {
		out.OS = s.OS
	}
	if slices.Contains(declared, SettingCompiler) {
		out.Compiler = s.Compiler
	}
	if slices.Contains(declared, SettingBuildType) {
		out.BuildType = s.BuildType
	}
	if slices.Contains(declared, SettingArch) {
		out.Arch = s.Arch
	}
	return out
}

// ValidateSettingNames checks that every declared key is a known setting.
func ValidateSettingNames(declared []string) error {
	for _, key := range declared {
		if !slices.Contains(SettingNames, key) {
			return configurationError(Tag(ErrUnknownSetting, "setting", key))
		}
	}
	return nil
}
