// Package numpolicy walks a parsed strictjson.Value and enforces the
// numeric policy gate: any float-tagged literal anywhere in the tree is
// rejected regardless of its value, and any int-tagged literal
// outside [-(2^63), 2^63-1] is rejected. Booleans are never mistaken for
// integers — strictjson already tags them KindBool, a distinct kind.
package numpolicy

import (
	"fmt"
	"math/big"

	"github.com/fazoncore/mdab-tel-cts/pkg/strictjson"
)

const (
	// Int64Max is 2^63 - 1, the largest value accepted by the gate.
	Int64Max = "9223372036854775807"
	// Int64Min is -2^63, the smallest value accepted by the gate.
	Int64Min = "-9223372036854775808"
)

var (
	maxBig = mustBig(Int64Max)
	minBig = mustBig(Int64Min)
)

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("numpolicy: invalid boundary constant " + s)
	}
	return n
}

// Violation describes where in the tree the policy gate failed.
type Violation struct {
	// Code is either "E_FLOAT_FORBIDDEN" or "E_INT_RANGE".
	Code string
	// Path is a dotted/bracketed JSON-pointer-ish path to the offending value.
	Path string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s at %s", v.Code, v.Path)
}

// Check runs two full-tree passes: a float scan first, and only when it
// finds nothing, a second pass over integer ranges. A float anywhere in
// the document dominates an out-of-range integer anywhere else in the
// document, even when the int-range offense would otherwise be
// encountered first in document order — e.g.
// {"a": 9223372036854775808, "b": 1.0} is E_FLOAT_FORBIDDEN, not
// E_INT_RANGE.
func Check(v strictjson.Value) error {
	if path, ok := findFloat(v, "$"); ok {
		return &Violation{Code: "E_FLOAT_FORBIDDEN", Path: path}
	}
	return checkIntRanges(v, "$")
}

// findFloat recurses into every branch until a float-tagged literal is
// found or the whole tree is exhausted.
func findFloat(v strictjson.Value, path string) (string, bool) {
	switch v.Kind {
	case strictjson.KindFloat:
		return path, true
	case strictjson.KindArray:
		for i, elem := range v.Arr {
			if p, ok := findFloat(elem, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
		return "", false
	case strictjson.KindObject:
		for _, k := range v.Obj.Keys() {
			child, _ := v.Obj.Get(k)
			if p, ok := findFloat(child, path+"."+k); ok {
				return p, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// checkIntRanges runs only once the whole tree is known to be
// float-free: a depth-first walk returning the first out-of-range
// integer encountered.
func checkIntRanges(v strictjson.Value, path string) error {
	switch v.Kind {
	case strictjson.KindInt:
		n, ok := new(big.Int).SetString(v.Raw.String(), 10)
		if !ok {
			return &Violation{Code: "E_INT_RANGE", Path: path}
		}
		if n.Cmp(minBig) < 0 || n.Cmp(maxBig) > 0 {
			return &Violation{Code: "E_INT_RANGE", Path: path}
		}
		return nil
	case strictjson.KindArray:
		for i, elem := range v.Arr {
			if err := checkIntRanges(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case strictjson.KindObject:
		for _, k := range v.Obj.Keys() {
			child, _ := v.Obj.Get(k)
			if err := checkIntRanges(child, path+"."+k); err != nil {
				return err
			}
		}
		return nil
	default:
		// KindNull, KindBool, KindString carry no numeric policy constraint.
		return nil
	}
}
