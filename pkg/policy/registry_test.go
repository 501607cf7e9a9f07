package policy_test

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryHasBuiltinPolicies(t *testing.T) {
	r := policy.NewRegistry()

	for _, name := range []string{"fcfs", "backfill", "topo"} {
		pol, err := r.Load(name, "")
		require.NoError(t, err, name)
		assert.NotEmpty(t, pol.Name())
	}
}

func TestLoadUnknownPolicyErrors(t *testing.T) {
	r := policy.NewRegistry()
	_, err := r.Load("nonexistent", "")
	assert.Error(t, err)
}

func TestLoadPropagatesParseError(t *testing.T) {
	r := policy.NewRegistry()
	_, err := r.Load("backfill", "reserve-depth=not-a-number")
	assert.Error(t, err)
}

func TestUnloadRemovesFromActive(t *testing.T) {
	r := policy.NewRegistry()
	_, err := r.Load("fcfs", "")
	require.NoError(t, err)
	require.Contains(t, r.Active(), "fcfs")

	r.Unload("fcfs")
	assert.NotContains(t, r.Active(), "fcfs")
}

func TestActiveReturnsACopy(t *testing.T) {
	r := policy.NewRegistry()
	_, err := r.Load("fcfs", "")
	require.NoError(t, err)

	active := r.Active()
	delete(active, "fcfs")

	assert.Contains(t, r.Active(), "fcfs", "mutating the returned map must not affect the registry")
}
