package domain

import "time"

// BuildInfo records the progress of one recipe instance. It is written after
// every completed phase and read back to resume packaging.
type BuildInfo struct {
	Recipe      string            `json:"recipe,omitzero"`
	Version     string            `json:"version,omitzero"`
	InstanceID  string            `json:"instance_id,omitzero"`
	Phase       Phase             `json:"phase,omitzero"`
	Settings    Settings          `json:"settings,omitzero"`
	Options     map[string]string `json:"options,omitzero"`
	Definitions []Definition      `json:"definitions,omitzero"`
	Fingerprint string            `json:"fingerprint,omitzero"`
	Layout      InstanceLayout    `json:"layout,omitzero"`
	Artifact    *Artifact         `json:"artifact,omitzero"`
	// InstallHash is the content hash of the install tree when the artifact
	// was published.
	InstallHash string            `json:"install_hash,omitzero"`
	Timestamp   time.Time         `json:"timestamp,omitzero"`
}

// Completed reports whether the record shows p as done.
func (b *BuildInfo) Completed(p Phase) bool {
	return b != nil && b.Phase >= p
}
