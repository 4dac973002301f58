package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

var phases = []domain.Phase{
	domain.PhaseSource,
	domain.PhaseConfigure,
	domain.PhaseBuild,
	domain.PhasePackage,
	domain.PhasePackageInfo,
}

func TestPhase_Order(t *testing.T) {
	assert.Less(t, domain.PhaseNone, phases[0])
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1], phases[i])
	}
}

func TestPhase_Text(t *testing.T) {
	for _, p := range phases {
		parsed, err := domain.ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := domain.ParsePhase("deploy")
	require.Error(t, err)

	data, err := json.Marshal(struct {
		Phase domain.Phase `json:"phase"`
	}{domain.PhasePackageInfo})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"package_info"}`, string(data))

	var out struct {
		Phase domain.Phase `json:"phase"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"configure"}`), &out))
	assert.Equal(t, domain.PhaseConfigure, out.Phase)
}
