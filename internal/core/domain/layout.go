package domain

import "path/filepath"

const (
	// KilnDirName is the name of the internal workspace directory.
	KilnDirName = ".kiln"

	// StoreDirName is the name of the build info store directory.
	StoreDirName = "store"

	// InstancesDirName is the name of the directory holding recipe instance workspaces.
	InstancesDirName = "instances"

	// LogsDirName is the name of the directory holding build tool logs.
	LogsDirName = "logs"

	// RecipeFileName is the name of the recipe file.
	RecipeFileName = "kiln.yaml"

	// WorkFileName is the name of the workspace configuration file.
	WorkFileName = "kiln.work.yaml"

	// DebugLogFile is the name of the debug log file.
	DebugLogFile = "debug.log"

	// SourceDirName is the per-instance directory the source is fetched into.
	SourceDirName = "src"

	// BuildDirName is the per-instance build tree.
	BuildDirName = "build"

	// InstallDirName is the per-instance install root.
	InstallDirName = "install"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultKilnPath returns the default root directory for kiln metadata.
func DefaultKilnPath() string {
	return KilnDirName
}

// DefaultStorePath returns the default path for the build info store.
// It joins .kiln and store.
func DefaultStorePath() string {
	return filepath.Join(KilnDirName, StoreDirName)
}

// DefaultInstancesPath returns the default root of the instance workspaces.
// It joins .kiln and instances.
func DefaultInstancesPath() string {
	return filepath.Join(KilnDirName, InstancesDirName)
}

// DefaultLogsPath returns the default directory for build tool logs.
// It joins .kiln and logs.
func DefaultLogsPath() string {
	return filepath.Join(KilnDirName, LogsDirName)
}

// DefaultDebugLogPath returns the default path for the debug log.
// It joins .kiln and debug.log.
func DefaultDebugLogPath() string {
	return filepath.Join(KilnDirName, DebugLogFile)
}

// InstanceLayout is the on-disk workspace of one recipe instance.
type InstanceLayout struct {
	Root    string `json:"root"`
	Source  string `json:"source"`
	Build   string `json:"build"`
	Install string `json:"install"`
}

// NewInstanceLayout returns the layout rooted at root.
func NewInstanceLayout(root string) InstanceLayout {
	return InstanceLayout{
		Root:    root,
		Source:  filepath.Join(root, SourceDirName),
		Build:   filepath.Join(root, BuildDirName),
		Install: filepath.Join(root, InstallDirName),
	}
}
