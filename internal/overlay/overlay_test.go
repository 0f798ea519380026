package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInvalidWithNoUserSamples(t *testing.T) {
	o := Build(Config{MaxPoints: 512}, nil, []float32{1, 2}, nil)
	assert.False(t, o.Valid)
}

func TestBuildInvalidWithNoMasterSourceAtAll(t *testing.T) {
	o := Build(Config{MaxPoints: 512}, []float32{1, 2, 3}, nil, nil)
	assert.False(t, o.Valid)
}

func TestBuildUsesRawMasterWhenAvailable(t *testing.T) {
	user := make([]float32, 2048)
	for i := range user {
		user[i] = 0.5
	}
	master := make([]float32, 2048)
	for i := range master {
		master[i] = 0.25
	}
	o := Build(Config{MaxPoints: 512}, user, master, nil)
	require.True(t, o.Valid)
	assert.Equal(t, len(o.User), len(o.Master))
	for _, v := range o.Master {
		assert.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestBuildFallsBackToEnergyApprox(t *testing.T) {
	user := make([]float32, 1024)
	for i := range user {
		user[i] = 1.0
	}
	energies := []float32{1, 2, 4, 2, 1}
	o := Build(Config{MaxPoints: 512}, user, nil, energies)
	require.True(t, o.Valid)
	assert.Equal(t, len(o.User), len(o.Master))
	for _, v := range o.Master {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1.0001))
	}
}

func TestBuildPreferEnergyApproxIgnoresRawMaster(t *testing.T) {
	user := make([]float32, 100)
	for i := range user {
		user[i] = 1.0
	}
	master := make([]float32, 100)
	for i := range master {
		master[i] = 0.9
	}
	energies := []float32{1, 1}
	o := Build(Config{MaxPoints: 512, PreferEnergyApprox: true}, user, master, energies)
	require.True(t, o.Valid)
	// Energy-approx path normalizes to 1.0 peaks, not 0.9 like the raw master would.
	for _, v := range o.Master {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestBuildOutputIsBoundedToUnitRange(t *testing.T) {
	user := make([]float32, 4096)
	for i := range user {
		user[i] = -0.75
	}
	master := make([]float32, 4096)
	for i := range master {
		master[i] = 1.0
	}
	o := Build(Config{MaxPoints: 128}, user, master, nil)
	require.True(t, o.Valid)
	for _, v := range o.User {
		assert.InDelta(t, 0.75, v, 1e-6)
	}
}

func TestUserDecimationOverrideWidensBuckets(t *testing.T) {
	user := make([]float32, 1024)
	for i := range user {
		user[i] = 1.0
	}
	o := Build(Config{MaxPoints: 512, UserDecimationOverride: 64}, user, user, nil)
	require.True(t, o.Valid)
	assert.Equal(t, 16, len(o.User)) // 1024/64
	assert.Equal(t, 64, o.Decimation)
}

func TestSqrtEnergyMapRescalesEnergies(t *testing.T) {
	user := make([]float32, 100)
	for i := range user {
		user[i] = 1
	}
	energies := []float32{0.25, 1}
	linear := Build(Config{MaxPoints: 512, EnergyMap: EnergyMapLinear}, user, nil, energies)
	sqrtMap := Build(Config{MaxPoints: 512, EnergyMap: EnergyMapSqrt}, user, nil, energies)
	require.True(t, linear.Valid)
	require.True(t, sqrtMap.Valid)
	assert.Greater(t, sqrtMap.Master[0], linear.Master[0])
}
