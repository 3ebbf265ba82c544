// Package verifier orchestrates the layered, fail-fast verification
// pipeline: strict parse, numeric policy, schema validation,
// decision-hash check, event-hash/chain/checkpoint verification, and
// signature verification, gated by profile.
//
// core  = parse + numeric policy + schema + decision-hash
// audit = core + event-hash + chain + checkpoint
// ha    = audit + signature, required on every event
package verifier

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/fazoncore/mdab-tel-cts/pkg/chain"
	"github.com/fazoncore/mdab-tel-cts/pkg/event"
	"github.com/fazoncore/mdab-tel-cts/pkg/keybundle"
	"github.com/fazoncore/mdab-tel-cts/pkg/numpolicy"
	"github.com/fazoncore/mdab-tel-cts/pkg/schema"
	"github.com/fazoncore/mdab-tel-cts/pkg/signature"
	"github.com/fazoncore/mdab-tel-cts/pkg/strictjson"
)

// Profile selects verification depth.
type Profile string

const (
	ProfileCore  Profile = "core"
	ProfileAudit Profile = "audit"
	ProfileHA    Profile = "ha"
)

// Valid reports whether p is one of the three defined profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileCore, ProfileAudit, ProfileHA:
		return true
	}
	return false
}

// KeyLoader resolves the key bundle path to a loaded Bundle. Abstracted
// so cmd/mdabverify can control exactly when and how load errors become
// fatal vs. line-numbered: ha loads eagerly before the first line is
// read, core/audit load lazily on the first signature-bearing event.
type KeyLoader func() (*keybundle.Bundle, error)

// Result is the single verdict a stream verification produces.
type Result struct {
	// Pass is true only if every line in the stream was accepted.
	Pass bool
	// Line is the 1-based index, among non-blank lines, of the first
	// failing line. Zero when Pass is true.
	Line int
	// Code is the stable error identifier, empty on PASS.
	Code string
	// Detail is an optional human-readable elaboration (schema errors
	// carry a path/message; most codes have no detail).
	Detail string
	// RunID stamps this verification run for audit-report correlation.
	RunID string
}

func lineFailure(line int, code, detail string) *Result {
	return &Result{Pass: false, Line: line, Code: code, Detail: detail, RunID: uuid.NewString()}
}

// sharedSchemas is loaded once per process; schema documents are fixed
// and embedded, so there is nothing to reload between VerifyStream calls.
var sharedSchemas *schema.Registry

func ensureSchemas() (*schema.Registry, error) {
	if sharedSchemas != nil {
		return sharedSchemas, nil
	}
	r, err := schema.Load()
	if err != nil {
		return nil, err
	}
	sharedSchemas = r
	return r, nil
}

// VerifyStream reads newline-delimited events from r and runs the
// fail-fast pipeline gated by profile. loadKeys is consulted only when
// signature verification is engaged (ha profile, or any event carrying a
// signature field under core/audit) and is called at most once per run.
//
// A non-nil error return is a fatal (usage/IO-class) failure — the
// caller maps that to exit code 2. A non-nil *Result with Pass=false is
// a normal line-numbered verification failure — exit code 1.
func VerifyStream(r io.Reader, profile Profile, loadKeys KeyLoader) (*Result, error) {
	if !profile.Valid() {
		return nil, fmt.Errorf("verifier: invalid profile %q", profile)
	}

	schemas, err := ensureSchemas()
	if err != nil {
		return nil, fmt.Errorf("verifier: schema load: %w", err)
	}

	var keys *keybundle.Bundle
	if profile == ProfileHA {
		keys, err = loadKeys()
		if err != nil {
			return nil, fmt.Errorf("verifier: key bundle load: %w", err)
		}
	}

	chains := make(map[event.Emitter]*chain.ChainState)

	lineNo := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lineNo++

		res, ioErr := verifyLine(raw, lineNo, profile, schemas, chains, &keys, loadKeys)
		if ioErr != nil {
			return nil, ioErr
		}
		if res != nil {
			return res, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("verifier: reading stream: %w", err)
	}

	return &Result{Pass: true, RunID: uuid.NewString()}, nil
}

// verifyLine runs the full per-line pipeline. A non-nil *Result signals
// a line failure to propagate; (nil, nil) means the line was accepted
// and the caller should continue.
func verifyLine(raw string, lineNo int, profile Profile, schemas *schema.Registry, chains map[event.Emitter]*chain.ChainState, keys **keybundle.Bundle, loadKeys KeyLoader) (*Result, error) {
	val, perr := strictjson.ParseLine(raw)
	if perr != nil {
		if pe, ok := perr.(*strictjson.ParseError); ok && pe.Duplicate {
			return lineFailure(lineNo, "E_DUPLICATE_KEY", ""), nil
		}
		return lineFailure(lineNo, "E_PARSE_ERROR", ""), nil
	}

	if npErr := numpolicy.Check(val); npErr != nil {
		v := npErr.(*numpolicy.Violation)
		return lineFailure(lineNo, v.Code, ""), nil
	}

	if val.Kind != strictjson.KindObject {
		return lineFailure(lineNo, "E_SCHEMA_INVALID", "top-level value is not an object"), nil
	}
	obj := val.Obj

	eventTypeVal, ok := obj.Get("event_type")
	if !ok || eventTypeVal.Kind != strictjson.KindString {
		return lineFailure(lineNo, "E_SCHEMA_INVALID", "missing or non-string event_type"), nil
	}
	eventType := eventTypeVal.Str
	if eventType != string(event.EventDecision) && eventType != string(event.EventCheckpoint) {
		return lineFailure(lineNo, "E_SCHEMA_INVALID", "unknown event_type"), nil
	}

	sch := schemas.Select(string(profile), eventType)
	instance := val.ToInterface()
	if verr := schema.Validate(sch, instance); verr != nil {
		return lineFailure(lineNo, "E_SCHEMA_INVALID", verr.Error()), nil
	}

	emitter, eerr := event.ParseEmitter(obj, "$")
	if eerr != nil {
		return lineFailure(lineNo, "E_SCHEMA_INVALID", eerr.Error()), nil
	}

	if eventType == string(event.EventDecision) {
		code, detail, derr := checkDecisionHash(obj)
		if derr != nil {
			return nil, fmt.Errorf("verifier: line %d: %w", lineNo, derr)
		}
		if code != "" {
			return lineFailure(lineNo, code, detail), nil
		}
	}

	var eventHash string
	if ehVal, ok := obj.Get("event_hash"); ok && ehVal.Kind == strictjson.KindString {
		eventHash = ehVal.Str
	}

	if profile == ProfileAudit || profile == ProfileHA {
		cs, exists := chains[emitter]
		if !exists {
			cs = chain.NewChainState()
			chains[emitter] = cs
		}

		code, herr := checkEventHash(obj, eventHash)
		if herr != nil {
			return nil, fmt.Errorf("verifier: line %d: %w", lineNo, herr)
		}
		if code != "" {
			return lineFailure(lineNo, code, ""), nil
		}

		seq, serr := event.Int64(obj, "seq", "$")
		if serr != nil {
			return lineFailure(lineNo, "E_SCHEMA_INVALID", serr.Error()), nil
		}
		prevHash, prevIsNull, nerr := event.NullableStr(obj, "prev_event_hash", "$")
		if nerr != nil {
			return lineFailure(lineNo, "E_SCHEMA_INVALID", nerr.Error()), nil
		}

		if aerr := cs.Accept(seq, prevIsNull, prevHash, eventHash); aerr != nil {
			return lineFailure(lineNo, string(aerr.(*chain.Failure).Code), ""), nil
		}

		if eventType == string(event.EventDecision) {
			cs.RecordDecision(seq, eventHash)
		}

		if eventType == string(event.EventCheckpoint) {
			if code := checkCheckpoint(obj, cs); code != "" {
				return lineFailure(lineNo, code, ""), nil
			}
		}
	}

	_, sigPresent := obj.Get("signature")
	if profile == ProfileHA || sigPresent {
		if *keys == nil {
			loaded, lerr := loadKeys()
			if lerr != nil || loaded == nil {
				return lineFailure(lineNo, "E_KEY_UNKNOWN", ""), nil
			}
			*keys = loaded
		}

		claim, cerr := buildClaim(obj, eventHash)
		if cerr != "" {
			return lineFailure(lineNo, cerr, ""), nil
		}

		if serr := signature.Verify(*keys, claim); serr != nil {
			var sf *signature.Failure
			if !errors.As(serr, &sf) {
				return nil, fmt.Errorf("verifier: line %d: %w", lineNo, serr)
			}
			return lineFailure(lineNo, string(sf.Code), ""), nil
		}
	}

	return nil, nil
}

func checkDecisionHash(obj *strictjson.Object) (code, detail string, err error) {
	decisionVal, ok := obj.Get("decision")
	if !ok || decisionVal.Kind != strictjson.KindObject {
		return "E_SCHEMA_INVALID", "missing decision object", nil
	}
	coreVal, ok := decisionVal.Obj.Get("decision_core")
	if !ok {
		return "E_SCHEMA_INVALID", "missing decision_core", nil
	}

	var declared string
	if hv, ok := decisionVal.Obj.Get("decision_hash"); ok && hv.Kind == strictjson.KindString {
		declared = hv.Str
	} else if dv, ok := decisionVal.Obj.Get("decision_digest"); ok && dv.Kind == strictjson.KindString {
		declared = dv.Str
	}

	df := chain.NewDecisionFields(coreVal.ToInterface(), declared, "")
	if verr := chain.VerifyDecisionHash(df); verr != nil {
		var cf *chain.Failure
		if !errors.As(verr, &cf) {
			return "", "", verr
		}
		return string(cf.Code), "", nil
	}
	return "", "", nil
}

// checkEventHash recomputes the canonical hash of the event with
// event_hash and signature removed and compares it to the declared one.
func checkEventHash(obj *strictjson.Object, declaredEventHash string) (string, error) {
	clone := make(map[string]interface{}, obj.Len())
	for _, k := range obj.Keys() {
		if k == "event_hash" || k == "signature" {
			continue
		}
		v, _ := obj.Get(k)
		clone[k] = v.ToInterface()
	}
	if err := chain.VerifyEventHash(clone, declaredEventHash); err != nil {
		var cf *chain.Failure
		if !errors.As(err, &cf) {
			return "", err
		}
		return string(cf.Code), nil
	}
	return "", nil
}

func checkCheckpoint(obj *strictjson.Object, cs *chain.ChainState) string {
	cpVal, ok := obj.Get("checkpoint")
	if !ok || cpVal.Kind != strictjson.KindObject {
		return "E_SCHEMA_INVALID"
	}
	start, serr := event.Int64(cpVal.Obj, "range_start_seq", "$.checkpoint")
	if serr != nil {
		return "E_SCHEMA_INVALID"
	}
	end, eerr := event.Int64(cpVal.Obj, "range_end_seq", "$.checkpoint")
	if eerr != nil {
		return "E_SCHEMA_INVALID"
	}
	blockHash, berr := event.Str(cpVal.Obj, "block_hash", "$.checkpoint")
	if berr != nil {
		return "E_SCHEMA_INVALID"
	}
	lastHash, lerr := event.Str(cpVal.Obj, "last_event_hash", "$.checkpoint")
	if lerr != nil {
		return "E_SCHEMA_INVALID"
	}

	if err := cs.VerifyCheckpoint(start, end, blockHash, lastHash); err != nil {
		return string(err.(*chain.Failure).Code)
	}
	return ""
}

func buildClaim(obj *strictjson.Object, eventHash string) (signature.Claim, string) {
	sigVal, ok := obj.Get("signature")
	if !ok || sigVal.Kind != strictjson.KindObject {
		return signature.Claim{}, "E_SIG_INVALID"
	}
	alg, aerr := event.Str(sigVal.Obj, "alg", "$.signature")
	if aerr != nil {
		return signature.Claim{}, "E_SIG_INVALID"
	}
	keyID, kerr := event.Str(sigVal.Obj, "key_id", "$.signature")
	if kerr != nil {
		return signature.Claim{}, "E_KEY_UNKNOWN"
	}
	sigB64, serr := event.Str(sigVal.Obj, "sig_b64", "$.signature")
	if serr != nil {
		return signature.Claim{}, "E_SIG_INVALID"
	}
	tsUTC, terr := event.Str(obj, "ts_utc", "$")
	if terr != nil {
		return signature.Claim{}, "E_SCHEMA_INVALID"
	}

	return signature.Claim{
		Alg: alg, KeyID: keyID, SigB64: sigB64, EventHash: eventHash, TsUTC: tsUTC,
	}, ""
}
