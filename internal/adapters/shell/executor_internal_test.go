package shell

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEnvironment(t *testing.T) {
	sep := string(os.PathListSeparator)
	tests := []struct {
		name     string
		sysEnv   []string
		cmdEnv   []string
		expected []string
	}{
		{
			name:     "system only",
			sysEnv:   []string{"USER=test", "PATH=/bin", "HOME=/home/test"},
			expected: []string{"HOME=/home/test", "PATH=/bin", "USER=test"},
		},
		{
			name:     "system filtered",
			sysEnv:   []string{"USER=test", "SECRET=key", "MALFORMED"},
			expected: []string{"USER=test"},
		},
		{
			name:     "tool PATH prepended",
			sysEnv:   []string{"PATH=/bin"},
			cmdEnv:   []string{"PATH=/tools/bin", "CMAKE_PREFIX_PATH=/deps"},
			expected: []string{"CMAKE_PREFIX_PATH=/deps", "PATH=/tools/bin" + sep + "/bin"},
		},
		{
			name:     "PATH without system PATH",
			cmdEnv:   []string{"PATH=/tools/bin"},
			expected: []string{"PATH=/tools/bin"},
		},
		{
			name:     "command overrides system",
			sysEnv:   []string{"CC=gcc"},
			cmdEnv:   []string{"CC=clang"},
			expected: []string{"CC=clang"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveEnvironment(tt.sysEnv, tt.cmdEnv))
		})
	}
}

func TestLookPath(t *testing.T) {
	_, err := lookPath("echo", []string{"USER=test"})
	assert.Error(t, err)

	_, err = lookPath("nonexistent-command", []string{"PATH=/nonexistent/dir"})
	assert.Error(t, err)

	_, err = lookPath("nonexistent", []string{"PATH=:" + t.TempDir()})
	assert.Error(t, err)
}

func TestFindExecutable(t *testing.T) {
	assert.Error(t, findExecutable("/nonexistent/file"))
	assert.Error(t, findExecutable(t.TempDir()))
}
