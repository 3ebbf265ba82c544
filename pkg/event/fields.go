package event

import (
	"fmt"
	"strconv"

	"github.com/fazoncore/mdab-tel-cts/pkg/strictjson"
)

// FieldError reports a structurally wrong or missing field. The verifier
// pipeline treats this as E_SCHEMA_INVALID material when it surfaces
// before schema validation would have caught it (defense in depth) — in
// practice the schema validator runs first and rejects malformed events
// before field extraction is attempted on anything but the happy path.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("event: field %s: %s", e.Path, e.Reason)
}

// Obj asserts v is an object and returns it.
func Obj(v strictjson.Value, path string) (*strictjson.Object, error) {
	if v.Kind != strictjson.KindObject {
		return nil, &FieldError{Path: path, Reason: "not an object"}
	}
	return v.Obj, nil
}

// Field fetches a required member of obj.
func Field(obj *strictjson.Object, key, path string) (strictjson.Value, error) {
	v, ok := obj.Get(key)
	if !ok {
		return strictjson.Value{}, &FieldError{Path: path + "." + key, Reason: "missing"}
	}
	return v, nil
}

// Str extracts a required string field.
func Str(obj *strictjson.Object, key, path string) (string, error) {
	v, err := Field(obj, key, path)
	if err != nil {
		return "", err
	}
	if v.Kind != strictjson.KindString {
		return "", &FieldError{Path: path + "." + key, Reason: "not a string"}
	}
	return v.Str, nil
}

// Int64 extracts a required integer field as int64.
func Int64(obj *strictjson.Object, key, path string) (int64, error) {
	v, err := Field(obj, key, path)
	if err != nil {
		return 0, err
	}
	if v.Kind != strictjson.KindInt {
		return 0, &FieldError{Path: path + "." + key, Reason: "not an integer"}
	}
	n, convErr := strconv.ParseInt(v.Raw.String(), 10, 64)
	if convErr != nil {
		return 0, &FieldError{Path: path + "." + key, Reason: "out of int64 range"}
	}
	return n, nil
}

// NullableStr extracts a field that is either a string or JSON null.
// Returns ("", true) for null, (s, false) for a present string.
func NullableStr(obj *strictjson.Object, key, path string) (value string, isNull bool, err error) {
	v, err := Field(obj, key, path)
	if err != nil {
		return "", false, err
	}
	switch v.Kind {
	case strictjson.KindNull:
		return "", true, nil
	case strictjson.KindString:
		return v.Str, false, nil
	default:
		return "", false, &FieldError{Path: path + "." + key, Reason: "not a string or null"}
	}
}

// ParseEmitter reads the four emitter fields from obj["emitter"].
func ParseEmitter(obj *strictjson.Object, path string) (Emitter, error) {
	ev, err := Field(obj, "emitter", path)
	if err != nil {
		return Emitter{}, err
	}
	eo, err := Obj(ev, path+".emitter")
	if err != nil {
		return Emitter{}, err
	}
	service, err := Str(eo, "service", path+".emitter")
	if err != nil {
		return Emitter{}, err
	}
	instance, err := Str(eo, "instance_id", path+".emitter")
	if err != nil {
		return Emitter{}, err
	}
	env, err := Str(eo, "env", path+".emitter")
	if err != nil {
		return Emitter{}, err
	}
	region, err := Str(eo, "region", path+".emitter")
	if err != nil {
		return Emitter{}, err
	}
	return Emitter{Service: service, InstanceID: instance, Env: env, Region: region}, nil
}
