package numpolicy

import (
	"testing"

	"github.com/fazoncore/mdab-tel-cts/pkg/strictjson"
)

func parse(t *testing.T, line string) strictjson.Value {
	t.Helper()
	v, err := strictjson.ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine(%q) failed: %v", line, err)
	}
	return v
}

func TestCheck_RejectsFloatAnywhere(t *testing.T) {
	v := parse(t, `{"x":1.0}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN")
	}
	viol := err.(*Violation)
	if viol.Code != "E_FLOAT_FORBIDDEN" {
		t.Errorf("got code %q", viol.Code)
	}
}

func TestCheck_RejectsFloatNested(t *testing.T) {
	v := parse(t, `{"a":{"b":[1,2,{"c":3.5}]}}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN")
	}
	if err.(*Violation).Code != "E_FLOAT_FORBIDDEN" {
		t.Errorf("got code %q", err.(*Violation).Code)
	}
}

func TestCheck_ExponentFormIsFloat(t *testing.T) {
	v := parse(t, `{"x":1e2}`)
	if err := Check(v); err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN for exponent literal")
	}
}

func TestCheck_IntBoundariesAccepted(t *testing.T) {
	v := parse(t, `{"max":9223372036854775807,"min":-9223372036854775808}`)
	if err := Check(v); err != nil {
		t.Fatalf("boundary ints should be accepted: %v", err)
	}
}

func TestCheck_IntOneBeyondMaxRejected(t *testing.T) {
	v := parse(t, `{"x":9223372036854775808}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_INT_RANGE")
	}
	if err.(*Violation).Code != "E_INT_RANGE" {
		t.Errorf("got code %q", err.(*Violation).Code)
	}
}

func TestCheck_IntOneBeyondMinRejected(t *testing.T) {
	v := parse(t, `{"x":-9223372036854775809}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_INT_RANGE")
	}
	if err.(*Violation).Code != "E_INT_RANGE" {
		t.Errorf("got code %q", err.(*Violation).Code)
	}
}

func TestCheck_BoolNeverMistakenForInt(t *testing.T) {
	v := parse(t, `{"flag":true,"other":false}`)
	if err := Check(v); err != nil {
		t.Fatalf("booleans should never trip the numeric gate: %v", err)
	}
}

func TestCheck_ArrayElementsWalked(t *testing.T) {
	v := parse(t, `{"arr":[1,2,3.0]}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN inside array")
	}
}

func TestCheck_CleanIntegerTreePasses(t *testing.T) {
	v := parse(t, `{"seq":5,"nested":{"a":1,"b":[1,2,3]},"s":"text","n":null}`)
	if err := Check(v); err != nil {
		t.Fatalf("unexpected violation: %v", err)
	}
}

// TestCheck_FloatDominatesIntRangeRegardlessOfOrder pins the two-pass
// contract: a float anywhere in the document beats an out-of-range
// integer anywhere else, even when the int-range offense appears first
// in document order and would otherwise be found first by a single
// interleaved walk.
func TestCheck_FloatDominatesIntRangeRegardlessOfOrder(t *testing.T) {
	v := parse(t, `{"a":9223372036854775808,"b":1.0}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN")
	}
	if got := err.(*Violation).Code; got != "E_FLOAT_FORBIDDEN" {
		t.Errorf("float must dominate int-range regardless of document order: got %q, want E_FLOAT_FORBIDDEN", got)
	}
}

func TestCheck_FloatDominatesIntRangeEvenWhenFloatComesLast(t *testing.T) {
	v := parse(t, `{"arr":[9223372036854775808,-9223372036854775809],"tail":2.5}`)
	err := Check(v)
	if err == nil {
		t.Fatal("expected E_FLOAT_FORBIDDEN")
	}
	if got := err.(*Violation).Code; got != "E_FLOAT_FORBIDDEN" {
		t.Errorf("got code %q, want E_FLOAT_FORBIDDEN", got)
	}
}
