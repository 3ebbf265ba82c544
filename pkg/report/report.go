// Package report builds the structured, machine-readable audit report
// emitted by cmd/mdabverify's --json/--json-out flags. This is purely an
// observational surface over a verifier.Result: it carries no weight in
// the pass/fail protocol, which remains the plain-text PASS/FAIL lines.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/fazoncore/mdab-tel-cts/pkg/verifier"
)

// Report is the structured form of one VerifyStream run.
type Report struct {
	RunID       string `json:"run_id"`
	Stream      string `json:"stream"`
	Profile     string `json:"profile"`
	Verified    bool   `json:"verified"`
	Line        int    `json:"line,omitempty"`
	Code        string `json:"code,omitempty"`
	Detail      string `json:"detail,omitempty"`
	GeneratedAt string `json:"generated_at"`
}

// FromResult builds a Report from a completed verification run. now is
// passed in rather than read from time.Now() so callers control the
// generated_at stamp (keeps report generation itself free of hidden
// clock reads, matching the rest of the verifier's purely-synchronous,
// input-determined design).
func FromResult(streamPath string, profile verifier.Profile, res *verifier.Result, now time.Time) *Report {
	r := &Report{
		RunID:       res.RunID,
		Stream:      streamPath,
		Profile:     string(profile),
		Verified:    res.Pass,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	if !res.Pass {
		r.Line = res.Line
		r.Code = res.Code
		r.Detail = res.Detail
	}
	return r
}

// Canonical renders the report as RFC 8785 (JCS) canonical JSON bytes, so
// two runs over the same stream produce byte-identical --json-out output
// regardless of the Go map/struct field emission order. This is a
// reproducibility convenience for the report surface only — it is
// unrelated to, and uses a different canonicalizer than, the hash-critical
// pkg/canonicalize path that decision/event/block hashes depend on: a
// report field is never hashed or chained, so the float64-decoding
// round-trip jcs.Transform performs internally is safe here.
func (r *Report) Canonical() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("report: jcs transform: %w", err)
	}
	return out, nil
}

// Pretty renders the report as human-readable indented JSON (the --json
// stdout form; --json-out uses Canonical instead for reproducible diffs).
func (r *Report) Pretty() ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return out, nil
}
