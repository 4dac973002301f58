package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// instanceIDLen is the number of hex characters used in instance directory names.
const instanceIDLen = 12

// GenerateInstanceID creates a deterministic hash identifying one configured
// instance of a recipe: its reference, the settings it declares, its resolved
// options and its build definitions.
func GenerateInstanceID(ref Reference, settings Settings, options ResolvedOptionSet, defs DefinitionMap) string {
	var builder strings.Builder
	builder.WriteString(ref.String())
	builder.WriteString(";")

	builder.WriteString("os:" + settings.OS + ";")
	builder.WriteString("compiler:" + settings.Compiler + ";")
	builder.WriteString("build_type:" + settings.BuildType + ";")
	builder.WriteString("arch:" + settings.Arch + ";")

	// Names() is sorted.
	for _, name := range options.Names() {
		v, _ := options.Get(name)
		builder.WriteString(name)
		builder.WriteString("=")
		builder.WriteString(v)
		builder.WriteString(";")
	}

	builder.Write(defs.Encode())

	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}

// InstanceDirName returns the directory name of an instance workspace.
func InstanceDirName(ref Reference, id string) string {
	short := id
	if len(short) > instanceIDLen {
		short = short[:instanceIDLen]
	}
	version := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:`, r) {
			return '_'
		}
		return r
	}, ref.Version)
	return ref.Name + "-" + version + "-" + short
}
