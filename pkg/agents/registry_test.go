package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

func staticAllow(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	return &contracts.AgentVote{Vote: contracts.VoteAllow, Confidence: 0.9}, nil
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Spec{ID: "safety-1", Capability: contracts.CapabilitySafety, Weight: 1.5, Veto: true}, staticAllow)
	require.NoError(t, err)

	a, err := r.Get("safety-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.CapabilitySafety, a.Capability)
	assert.Equal(t, 1.5, a.Weight)
	assert.True(t, a.Veto)
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Spec{Capability: contracts.CapabilitySafety, Weight: 1}, staticAllow))
	assert.Error(t, r.Register(Spec{ID: "a", Weight: 1}, staticAllow))
	assert.Error(t, r.Register(Spec{ID: "a", Capability: contracts.CapabilitySafety, Weight: -1}, staticAllow))
	assert.Error(t, r.Register(Spec{ID: "a", Capability: contracts.CapabilitySafety, Weight: 1}, nil))

	require.NoError(t, r.Register(Spec{ID: "a", Capability: contracts.CapabilitySafety, Weight: 1}, staticAllow))
	err := r.Register(Spec{ID: "a", Capability: contracts.CapabilityEthics, Weight: 1}, staticAllow)
	assert.ErrorIs(t, err, ErrDuplicateAgent)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Spec{ID: "a", Capability: contracts.CapabilitySafety, Weight: 1}, staticAllow))
	require.NoError(t, r.Unregister("a"))
	assert.ErrorIs(t, r.Unregister("a"), ErrAgentNotFound)
}

func TestParticipantsForDeterministicOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(Spec{ID: id, Capability: contracts.CapabilitySafety, Weight: 1}, staticAllow))
	}

	got := r.ParticipantsFor(nil)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "zeta", got[2].ID)
}

func TestParticipantsForCapabilityFilter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Spec{ID: "s", Capability: contracts.CapabilitySafety, Weight: 1}, staticAllow))
	require.NoError(t, r.Register(Spec{ID: "p", Capability: contracts.CapabilityPrivacy, Weight: 1}, staticAllow))
	require.NoError(t, r.Register(Spec{ID: "f", Capability: contracts.CapabilityFairness, Weight: 1}, staticAllow))

	got := r.ParticipantsFor([]contracts.Capability{contracts.CapabilitySafety, contracts.CapabilityPrivacy})
	require.Len(t, got, 2)
	assert.Equal(t, "p", got[0].ID)
	assert.Equal(t, "s", got[1].ID)

	all := r.ParticipantsFor(nil)
	assert.Len(t, all, 3)
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterDefaults(r))
	assert.Equal(t, 6, r.Len())

	safety, err := r.Get("safety-monitor")
	require.NoError(t, err)
	assert.True(t, safety.Veto)

	privacy, err := r.Get("privacy-guardian")
	require.NoError(t, err)
	assert.False(t, privacy.Veto)
}
