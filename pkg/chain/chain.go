// Package chain implements the three content-addressed verification
// layers that sit between schema validation and signature verification:
// the decision-hash check, the per-emitter event-hash/sequence chain
// state machine, and checkpoint block-hash verification.
//
// State here is the verifier's only mutable, run-scoped memory: one
// ChainState per emitter, keyed by value equality (event.Emitter is a
// plain comparable struct), growing for the lifetime of a single stream
// read. Nothing here persists across runs.
package chain

import (
	"fmt"
	"strings"

	"github.com/fazoncore/mdab-tel-cts/pkg/canonicalize"
	"github.com/fazoncore/mdab-tel-cts/pkg/event"
)

// Code is one of the stable error identifiers this package can return.
type Code string

const (
	CodeDecisionHashMismatch Code = "E_DECISION_HASH_MISMATCH"
	CodeHashMismatch         Code = "E_HASH_MISMATCH"
	CodeSeqNonMonotonic      Code = "E_SEQ_NON_MONOTONIC"
	CodeSeqGap               Code = "E_SEQ_GAP"
	CodeChainBreak           Code = "E_CHAIN_BREAK"
	CodeBlockHashMismatch    Code = "E_BLOCKHASH_MISMATCH"
)

// Failure is a typed chain-layer error carrying the stable code.
type Failure struct {
	Code Code
}

func (f *Failure) Error() string { return string(f.Code) }

func fail(c Code) error { return &Failure{Code: c} }

// VerifyDecisionHash recomputes sha256:hex(SHA-256(canonical(decision_core)))
// and compares it against the declared decision_hash, falling back to the
// decision_digest alias only when decision_hash is absent. Simultaneous
// presence of both fields is not an error at this layer; the schema owns
// that constraint if anyone wants it.
func VerifyDecisionHash(decisionObj *decisionFields) error {
	calc, err := canonicalize.PrefixedHash(decisionObj.Core)
	if err != nil {
		return fmt.Errorf("chain: canonicalize decision_core: %w", err)
	}

	declared := decisionObj.Hash
	if declared == "" && decisionObj.Digest != "" {
		declared = decisionObj.Digest
	}
	if declared != calc {
		return fail(CodeDecisionHashMismatch)
	}
	return nil
}

// decisionFields is the minimal shape VerifyDecisionHash needs; callers
// (pkg/verifier) populate it from the parsed event tree.
type decisionFields struct {
	Core   interface{}
	Hash   string
	Digest string
}

// NewDecisionFields constructs the input to VerifyDecisionHash.
func NewDecisionFields(core interface{}, hash, digest string) *decisionFields {
	return &decisionFields{Core: core, Hash: hash, Digest: digest}
}

// VerifyEventHash recomputes the prefixed canonical hash of withoutHashOrSig
// (the event map with event_hash and signature already removed by the
// caller) and compares it to declaredEventHash.
func VerifyEventHash(withoutHashOrSig interface{}, declaredEventHash string) error {
	calc, err := canonicalize.PrefixedHash(withoutHashOrSig)
	if err != nil {
		return fmt.Errorf("chain: canonicalize event: %w", err)
	}
	if calc != declaredEventHash {
		return fail(CodeHashMismatch)
	}
	return nil
}

// ChainState is the per-emitter mutable state: the next sequence number
// expected and the event_hash of the last accepted event. It also
// remembers, for every accepted DECISION, its event_hash by seq so
// checkpoint verification can recompute block hashes over arbitrary
// earlier ranges.
type ChainState struct {
	expectedSeq       int64
	prevHash          string // "" means absent (only valid before seq 0 is accepted)
	decisionHashBySeq map[int64]string
}

// NewChainState returns a fresh chain state: expected_seq=0, no prev_hash.
func NewChainState() *ChainState {
	return &ChainState{decisionHashBySeq: make(map[int64]string)}
}

// Accept runs the sequence/prev-hash state machine for one event and, on
// success, advances the state. seq, prevEventHashIsNull and prevEventHash
// come from the event (prevEventHashIsNull is true when prev_event_hash is
// JSON null); eventHash is this event's own event_hash, recorded as the
// new prev_hash.
func (s *ChainState) Accept(seq int64, prevEventHashIsNull bool, prevEventHash, eventHash string) error {
	switch {
	case seq < s.expectedSeq:
		return fail(CodeSeqNonMonotonic)
	case seq > s.expectedSeq:
		return fail(CodeSeqGap)
	}

	if s.expectedSeq == 0 {
		if !prevEventHashIsNull {
			return fail(CodeChainBreak)
		}
	} else {
		if prevEventHashIsNull || prevEventHash != s.prevHash {
			return fail(CodeChainBreak)
		}
	}

	s.expectedSeq++
	s.prevHash = eventHash
	return nil
}

// RecordDecision remembers a DECISION's event_hash at seq, for later
// checkpoint verification. Call only after Accept has succeeded for that
// event. The map is never trimmed: a checkpoint may reference any earlier
// range, and a single CLI run has no memory pressure worth trading that
// correctness against.
func (s *ChainState) RecordDecision(seq int64, eventHash string) {
	s.decisionHashBySeq[seq] = eventHash
}

// VerifyCheckpoint recomputes the block hash over [rangeStart, rangeEnd]
// (inclusive) against this chain's recorded DECISION event hashes.
func (s *ChainState) VerifyCheckpoint(rangeStart, rangeEnd int64, declaredBlockHash, declaredLastEventHash string) error {
	if rangeStart > rangeEnd {
		return fail(CodeBlockHashMismatch)
	}

	hashes := make([]string, 0, rangeEnd-rangeStart+1)
	for seq := rangeStart; seq <= rangeEnd; seq++ {
		h, ok := s.decisionHashBySeq[seq]
		if !ok {
			return fail(CodeBlockHashMismatch)
		}
		hashes = append(hashes, h)
	}

	var sb strings.Builder
	sb.WriteString(event.BlockHashHeader)
	sb.WriteByte('\n')
	for _, h := range hashes {
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	calc := canonicalize.PrefixedHashBytes([]byte(sb.String()))

	if declaredBlockHash != calc {
		return fail(CodeBlockHashMismatch)
	}
	if declaredLastEventHash != hashes[len(hashes)-1] {
		return fail(CodeBlockHashMismatch)
	}
	return nil
}
