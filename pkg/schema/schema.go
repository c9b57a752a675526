// Package schema defines the record codec shared by agents and the run store.
// Records are plain Go structs; they serialize as pretty-printed JSON objects
// keyed by field name.
package schema

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// TypeOf returns the reflect handle for the record type T. Agent specs and
// run-store reads identify record types through these handles.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Marshal renders v as JSON indented with two spaces and terminated by a
// newline. This is the on-disk format for every file the run store writes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into a fresh value of the record type typ. Fields
// missing from the JSON keep their zero values; unknown JSON fields are
// ignored. Nested record fields decode recursively through their declared
// types.
func Unmarshal(data []byte, typ reflect.Type) (any, error) {
	if typ == nil {
		return nil, errors.New("nil record type")
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", typ)
	}
	return ptr.Elem().Interface(), nil
}
