package domain

// Artifact describes a packaged component to its consumers.
type Artifact struct {
	Ref Reference `json:"ref"`
	// Root is the install root the other paths are relative to.
	Root        string   `json:"root"`
	Libs        []string `json:"libs"`
	IncludeDirs []string `json:"include_dirs"`
}
