package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New()
	require.NoError(t, err)
	return n.WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
}

func TestNormalizeValidAction(t *testing.T) {
	n := newNormalizer(t)

	action, err := n.Normalize(map[string]any{
		"type":        "data_access",
		"actor":       "doctor_123",
		"description": "read patient record",
		"parameters":  map[string]any{"record_id": "r-42"},
		"context":     map[string]any{"consent": true},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, action.ID)
	assert.Equal(t, "data_access", action.Type)
	assert.Equal(t, "doctor_123", action.Actor)
	assert.Equal(t, map[string]any{"consent": true}, action.Context)
	assert.Contains(t, action.Fingerprint, "sha256:")
	assert.Equal(t, contracts.VerificationLevel(0), action.RequestedLevel)
}

func TestNormalizeMissingType(t *testing.T) {
	n := newNormalizer(t)
	_, err := n.Normalize(map[string]any{"actor": "svc"})
	require.Error(t, err)
	assert.True(t, contracts.IsValidationError(err))
}

func TestNormalizeMissingActor(t *testing.T) {
	n := newNormalizer(t)
	_, err := n.Normalize(map[string]any{"type": "deploy"})
	require.Error(t, err)
	assert.True(t, contracts.IsValidationError(err))
}

func TestNormalizeBlankActor(t *testing.T) {
	n := newNormalizer(t)
	_, err := n.Normalize(map[string]any{"type": "deploy", "actor": "   "})
	require.Error(t, err)
	assert.True(t, contracts.IsValidationError(err))
}

func TestNormalizeNonSerializableParameter(t *testing.T) {
	n := newNormalizer(t)
	_, err := n.Normalize(map[string]any{
		"type":       "data_access",
		"actor":      "svc",
		"parameters": map[string]any{"callback": make(chan int)},
	})
	require.Error(t, err)
	assert.True(t, contracts.IsValidationError(err))
}

func TestNormalizeRequestedLevel(t *testing.T) {
	n := newNormalizer(t)

	action, err := n.Normalize(map[string]any{
		"type":            "deploy",
		"actor":           "ci",
		"requested_level": "formal",
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.LevelFormal, action.RequestedLevel)

	_, err = n.Normalize(map[string]any{
		"type":            "deploy",
		"actor":           "ci",
		"requested_level": "paranoid",
	})
	require.Error(t, err)
	assert.True(t, contracts.IsValidationError(err))
}

func TestFingerprintIndependentOfKeyOrder(t *testing.T) {
	n := newNormalizer(t)

	a, err := n.Normalize(map[string]any{
		"type":       "data_access",
		"actor":      "doctor_123",
		"parameters": map[string]any{"a": 1, "b": "two", "c": true},
		"context":    map[string]any{"consent": true, "region": "eu"},
	})
	require.NoError(t, err)

	b, err := n.Normalize(map[string]any{
		"context":    map[string]any{"region": "eu", "consent": true},
		"parameters": map[string]any{"c": true, "b": "two", "a": 1},
		"actor":      "doctor_123",
		"type":       "data_access",
	})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.ID, b.ID, "ids are generated, not content-derived")
}

func TestFingerprintExcludesGeneratedFields(t *testing.T) {
	n := newNormalizer(t)

	a, err := n.Normalize(map[string]any{"type": "t", "actor": "x", "id": "explicit-1"})
	require.NoError(t, err)
	b, err := n.Normalize(map[string]any{"type": "t", "actor": "x", "id": "explicit-2"})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestFingerprintSensitiveToContent(t *testing.T) {
	n := newNormalizer(t)

	a, err := n.Normalize(map[string]any{"type": "t", "actor": "x"})
	require.NoError(t, err)
	b, err := n.Normalize(map[string]any{"type": "t", "actor": "y"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}
