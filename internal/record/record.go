package record

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Attributes maps attribute names (e.g. "name", "phone") to their values.
//
// A nil Attributes means the field was absent from the JSON body; an empty,
// non-nil one means it was present but had no entries.
type Attributes map[string]string

// Record is a single stored entity. Identity is the Key alone.
type Record struct {
	Key        string     `json:"key"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// New builds a Record, copying attrs so the caller keeps ownership.
func New(key string, attrs Attributes) Record {
	var a Attributes
	if attrs != nil {
		a = maps.Clone(attrs)
	}
	return Record{Key: key, Attributes: a}
}

// Has reports whether the attribute name is present.
func (a Attributes) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Names returns the attribute names in sorted order.
func (a Attributes) Names() []string {
	return slices.Sorted(maps.Keys(a))
}

// Merge copies every attribute present in patch onto r. Attributes absent
// from patch are left untouched.
func (r *Record) Merge(patch Attributes) {
	if len(patch) == 0 {
		return
	}
	if r.Attributes == nil {
		r.Attributes = make(Attributes, len(patch))
	}
	maps.Copy(r.Attributes, patch)
}

// Encode returns the JSON form of r:
//
//	{"key":"a@example.com","attributes":{"name":"John","phone":"0000000000"}}
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a JSON record. Attribute values must be strings.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("malformed record body: %w", err)
	}
	return r, nil
}
