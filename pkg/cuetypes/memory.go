// Package cuetypes holds the wire-level types shared across the cue-indexed
// memory store: the Memory record, its stats capability, and the JSON-value
// type used for opaque metadata.
package cuetypes

// Memory is a single stored unit: an opaque encrypted/compressed payload
// indexed by a set of cues.
type Memory struct {
	ID string `json:"id"` // stable identifier; caller-supplied or generated

	// Payload is the framed byte sequence produced by the payload package:
	// a 1-byte magic tag ('C' or 'E') followed by compressed (and
	// optionally encrypted) content bytes.
	Payload []byte `json:"payload"`

	// Cues is the ordered, deduplicated list of cue strings attached to
	// this memory. Every entry here must have a back-reference in the
	// owning engine's cue index.
	Cues []string `json:"cues"`

	// Metadata is opaque to the engine except for the optional
	// "project_id" key consulted by temporal chunking.
	Metadata map[string]JSONValue `json:"metadata,omitempty"`

	Stats Stats `json:"stats"`

	CreatedAt    int64 `json:"created_at"`    // unix seconds
	LastAccessed int64 `json:"last_accessed"` // unix seconds
}

// ProjectID returns the "project_id" metadata key if present and a string.
func (m *Memory) ProjectID() (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	v, ok := m.Metadata["project_id"]
	if !ok || v.Kind != JSONString {
		return "", false
	}
	return v.Str, true
}

// HasCue reports whether c is present verbatim in m.Cues.
func (m *Memory) HasCue(c string) bool {
	for _, existing := range m.Cues {
		if existing == c {
			return true
		}
	}
	return false
}
