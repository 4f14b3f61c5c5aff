// Package schema validates outbound events against JSON Schemas derived from
// their Go types.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"ai-voice-tutor/internal/models"
)

// Validator checks events by their eventType field.
type Validator struct {
	schemas map[string]*jsonschema.Resolved
}

// New builds schemas for every published event type.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Resolved)}
	if err := register[models.TranscriptPartial](v, models.EventTranscriptPartial); err != nil {
		return nil, err
	}
	if err := register[models.TranscriptFinal](v, models.EventTranscriptFinal); err != nil {
		return nil, err
	}
	return v, nil
}

func register[T any](v *Validator, eventType string) error {
	s, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return fmt.Errorf("schema for %s: %w", eventType, err)
	}
	var c any = eventType
	s.Properties["eventType"].Const = &c

	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", eventType, err)
	}
	v.schemas[eventType] = resolved
	return nil
}

// Validate checks event against the schema registered for its eventType.
func (v *Validator) Validate(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return v.ValidateJSON(payload)
}

// ValidateJSON checks an encoded event.
func (v *Validator) ValidateJSON(payload []byte) error {
	var instance map[string]any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("event is not a JSON object: %w", err)
	}

	eventType, _ := instance["eventType"].(string)
	resolved, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("event %s: %w", eventType, err)
	}
	return nil
}
