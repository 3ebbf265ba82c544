// Package event holds the wire-level data model of a telemetry audit
// stream: the two event variants, the emitter identity quadruple that
// keys per-chain state, and the wire constants shared across layers.
// Types here are deliberately thin views over the strictjson.Value tree
// produced by pkg/strictjson — the helpers in fields.go read fields out
// of that tree field-by-field rather than
// unmarshaling into structs, since struct unmarshaling would reintroduce
// the float/duplicate-key problems strictjson exists to avoid.
package event

// EventType distinguishes the two event variants.
type EventType string

const (
	EventDecision   EventType = "DECISION"
	EventCheckpoint EventType = "CHECKPOINT"
)

// Emitter is the identity quadruple keying one independent chain.
// Value equality (not pointer equality) is the chain key; callers should
// use Emitter as a map key directly.
type Emitter struct {
	Service    string
	InstanceID string
	Env        string
	Region     string
}

// KeyStatus mirrors the key bundle's status enum.
type KeyStatus string

const (
	KeyStatusActive KeyStatus = "ACTIVE"
)

// BlockHashHeader is the literal first line of checkpoint block-hash
// material.
const BlockHashHeader = "MDAB-BLOCK-0.1"

// Sha256Prefix is the wire prefix on every prefixed hash.
const Sha256Prefix = "sha256:"
