// Package normalize validates and canonicalizes incoming actions.
//
// Normalization is a pure function: a raw submission either becomes a
// deterministic, fingerprintable Action or is rejected with a
// ValidationError before any agent work begins.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/covenant-ai/covenant/core/pkg/canonicalize"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// actionSchema is the structural contract for raw submissions.
// Semantic checks (level parsing, fingerprinting) happen after it.
const actionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "actor"],
  "properties": {
    "id": {"type": "string"},
    "type": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "actor": {"type": "string", "minLength": 1},
    "parameters": {"type": "object"},
    "context": {"type": "object"},
    "requested_level": {"type": "string"}
  }
}`

// Normalizer turns raw submissions into canonical Actions.
type Normalizer struct {
	schema *jsonschema.Schema
	clock  func() time.Time
}

// New compiles the action schema and returns a Normalizer.
func New() (*Normalizer, error) {
	schema, err := jsonschema.CompileString("action.schema.json", actionSchema)
	if err != nil {
		return nil, fmt.Errorf("normalize: schema compile failed: %w", err)
	}
	return &Normalizer{schema: schema, clock: time.Now}, nil
}

// WithClock overrides the clock for deterministic testing.
func (n *Normalizer) WithClock(clock func() time.Time) *Normalizer {
	n.clock = clock
	return n
}

// Normalize validates raw and produces an immutable Action with a
// generated ID and a deterministic content fingerprint.
func (n *Normalizer) Normalize(raw map[string]any) (*contracts.Action, error) {
	if raw == nil {
		return nil, &contracts.ValidationError{Reason: "empty submission"}
	}

	// Round-trip through JSON. This rejects non-serializable values
	// (channels, functions, cycles) and yields the generic form the
	// schema validator expects.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, &contracts.ValidationError{Reason: fmt.Sprintf("not serializable: %v", err)}
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &contracts.ValidationError{Reason: fmt.Sprintf("decode failed: %v", err)}
	}

	if err := n.schema.Validate(generic); err != nil {
		return nil, schemaError(err)
	}
	fields := generic.(map[string]any)

	action := &contracts.Action{
		ID:          stringField(fields, "id"),
		Type:        strings.TrimSpace(stringField(fields, "type")),
		Description: stringField(fields, "description"),
		Actor:       strings.TrimSpace(stringField(fields, "actor")),
		Parameters:  mapField(fields, "parameters"),
		Context:     mapField(fields, "context"),
		SubmittedAt: n.clock(),
	}
	if action.Type == "" {
		return nil, &contracts.ValidationError{Field: "type", Reason: "must not be blank"}
	}
	if action.Actor == "" {
		return nil, &contracts.ValidationError{Field: "actor", Reason: "must not be blank"}
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}

	if lvl := stringField(fields, "requested_level"); lvl != "" {
		parsed, err := contracts.ParseLevel(lvl)
		if err != nil {
			return nil, &contracts.ValidationError{Field: "requested_level", Reason: err.Error()}
		}
		action.RequestedLevel = parsed
	}

	fingerprint, err := Fingerprint(action)
	if err != nil {
		return nil, &contracts.ValidationError{Reason: fmt.Sprintf("fingerprint failed: %v", err)}
	}
	action.Fingerprint = fingerprint

	return action, nil
}

// Fingerprint computes the deterministic content hash of an action
// over its canonical (sorted-key, NFC-normalized) encoding. Generated
// fields (ID, submission time) are excluded so identical content
// always yields an identical fingerprint.
func Fingerprint(action *contracts.Action) (string, error) {
	content := struct {
		Type        string         `json:"type"`
		Description string         `json:"description,omitempty"`
		Actor       string         `json:"actor"`
		Parameters  map[string]any `json:"parameters,omitempty"`
		Context     map[string]any `json:"context,omitempty"`
	}{
		Type:        action.Type,
		Description: action.Description,
		Actor:       action.Actor,
		Parameters:  action.Parameters,
		Context:     action.Context,
	}
	return canonicalize.CanonicalHash(content)
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if vErr, ok := err.(*jsonschema.ValidationError); ok {
		ve = vErr
		// The leaf cause carries the most specific location.
		for len(ve.Causes) > 0 {
			ve = ve.Causes[0]
		}
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		return &contracts.ValidationError{Field: field, Reason: ve.Message}
	}
	return &contracts.ValidationError{Reason: err.Error()}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok && len(v) > 0 {
		return v
	}
	return nil
}
