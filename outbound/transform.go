package outbound

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Transform rewrites the serialized envelope into a merchant-compatible
// payload shape. Profiles opt in through their PayloadFormat.
type Transform func(envelope []byte) ([]byte, error)

// Transforms maps payload format names to transforms. The empty format is
// the identity: merchants on the native envelope get it untouched.
type Transforms struct {
	mu    sync.RWMutex
	byFmt map[string]Transform
}

// NewTransforms creates the registry with the built-in formats.
func NewTransforms() *Transforms {
	t := &Transforms{byFmt: make(map[string]Transform)}
	t.Register("compat_flat", flatTransform)
	return t
}

// Register adds a named transform, replacing any previous registration.
func (t *Transforms) Register(format string, fn Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byFmt[format] = fn
}

// Apply rewrites the envelope for the given format.
func (t *Transforms) Apply(format string, envelope []byte) ([]byte, error) {
	if format == "" {
		return envelope, nil
	}

	t.mu.RLock()
	fn, ok := t.byFmt[format]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("outbound: unknown payload format %q", format)
	}
	return fn(envelope)
}

// flatTransform lifts the content object to the top level for merchants
// that predate the envelope, keeping the event metadata as "_event".
func flatTransform(envelope []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		return nil, fmt.Errorf("outbound: decode envelope: %w", err)
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(env.Content, &flat); err != nil {
		return nil, fmt.Errorf("outbound: decode content: %w", err)
	}

	meta, err := json.Marshal(map[string]any{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"timestamp":  env.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	flat["_event"] = meta

	return json.Marshal(flat)
}
