// Package strictjson parses one JSON object per line under contracts
// tighter than the standard decoder: duplicate object keys fail instead of
// silently overwriting, and every numeric literal keeps a tag recording
// whether it was written as an integer or a float token. The numeric
// policy gate downstream depends on that tag surviving parse; value alone
// cannot tell 1.0 from 1.
package strictjson

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// Kind tags a parsed JSON value with its syntactic shape.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is a strictly parsed JSON value. Numbers retain both their literal
// token (Raw) and a Kind discriminating integer from float tokens, so the
// numeric policy gate can reject floats structurally rather than by value.
type Value struct {
	Kind   Kind
	Bool   bool
	Raw    json.Number // populated for KindInt and KindFloat
	Str    string
	Arr    []Value
	Obj    *Object
}

// Object preserves insertion order of its members, which canonicalize
// does not rely on (it sorts), but which makes duplicate-key detection
// and error messages deterministic.
type Object struct {
	keys   []string
	values map[string]Value
}

// Keys returns the member names in first-seen order.
func (o *Object) Keys() []string { return o.keys }

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Len returns the number of members.
func (o *Object) Len() int { return len(o.keys) }

// ParseError reports a structural parse failure (E_PARSE_ERROR or
// E_DUPLICATE_KEY in the caller's taxonomy — this package stays
// taxonomy-agnostic and exposes Duplicate/Key so the caller assigns codes).
type ParseError struct {
	Msg       string
	Duplicate bool
	Key       string
}

func (e *ParseError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("strictjson: duplicate key %q", e.Key)
	}
	return "strictjson: " + e.Msg
}

// ParseLine parses exactly one JSON value from line using token-level
// decoding so duplicate object keys and integer/float discrimination are
// both observable. line must not contain a trailing newline; callers
// split the stream themselves.
func ParseLine(line string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}

	// Reject trailing garbage after the single top-level value.
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, &ParseError{Msg: "trailing data after JSON value"}
	}

	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, &ParseError{Msg: err.Error()}
	}
	return parseFromToken(dec, tok)
}

func parseFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '[':
			return parseArray(dec)
		case '{':
			return parseObject(dec)
		default:
			return Value{}, &ParseError{Msg: fmt.Sprintf("unexpected delimiter %q", t)}
		}
	default:
		return Value{}, &ParseError{Msg: fmt.Sprintf("unexpected token %T", tok)}
	}
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return Value{}, &ParseError{Msg: "invalid numeric literal: " + s}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &ParseError{Msg: "non-finite number: " + s}
		}
		return Value{Kind: KindFloat, Raw: n}, nil
	}
	return Value{Kind: KindInt, Raw: n}, nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	var arr []Value
	for dec.More() {
		v, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return Value{}, &ParseError{Msg: err.Error()}
	}
	return Value{Kind: KindArray, Arr: arr}, nil
}

func parseObject(dec *json.Decoder) (Value, error) {
	obj := &Object{values: make(map[string]Value)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, &ParseError{Msg: err.Error()}
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, &ParseError{Msg: "object key is not a string"}
		}
		if _, exists := obj.values[key]; exists {
			return Value{}, &ParseError{Duplicate: true, Key: key}
		}

		v, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		obj.keys = append(obj.keys, key)
		obj.values[key] = v
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return Value{}, &ParseError{Msg: err.Error()}
	}
	return Value{Kind: KindObject, Obj: obj}, nil
}

// ToInterface converts a Value into the generic interface{} form consumed
// by pkg/canonicalize (json.Number preserved) and pkg/schema. Duplicate-key
// checking has already happened by this point, so a plain map is safe.
func (v Value) ToInterface() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt, KindFloat:
		return v.Raw
	case KindString:
		return v.Str
	case KindArray:
		out := make([]interface{}, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, v.Obj.Len())
		for _, k := range v.Obj.keys {
			out[k] = v.Obj.values[k].ToInterface()
		}
		return out
	default:
		return nil
	}
}
