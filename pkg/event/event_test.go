package event

import (
	"testing"

	"github.com/fazoncore/mdab-tel-cts/pkg/strictjson"
)

func parse(t *testing.T, line string) *strictjson.Object {
	t.Helper()
	v, err := strictjson.ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	return v.Obj
}

func TestParseEmitter(t *testing.T) {
	obj := parse(t, `{"emitter":{"service":"svc","instance_id":"i-1","env":"prod","region":"us-east-1"}}`)
	em, err := ParseEmitter(obj, "$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Emitter{Service: "svc", InstanceID: "i-1", Env: "prod", Region: "us-east-1"}
	if em != want {
		t.Errorf("got %+v, want %+v", em, want)
	}
}

func TestParseEmitter_MissingField(t *testing.T) {
	obj := parse(t, `{"emitter":{"service":"svc"}}`)
	if _, err := ParseEmitter(obj, "$"); err == nil {
		t.Fatal("expected error for missing emitter fields")
	}
}

func TestInt64_RejectsFloatKind(t *testing.T) {
	obj := parse(t, `{"seq":1.5}`)
	if _, err := Int64(obj, "seq", "$"); err == nil {
		t.Fatal("expected error extracting float as int64")
	}
}

func TestNullableStr_NullAndValue(t *testing.T) {
	obj := parse(t, `{"a":null,"b":"x"}`)
	_, isNull, err := NullableStr(obj, "a", "$")
	if err != nil || !isNull {
		t.Fatalf("expected null, got isNull=%v err=%v", isNull, err)
	}
	v, isNull, err := NullableStr(obj, "b", "$")
	if err != nil || isNull || v != "x" {
		t.Fatalf("expected value x, got v=%q isNull=%v err=%v", v, isNull, err)
	}
}
