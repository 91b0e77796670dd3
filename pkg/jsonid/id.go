// Package jsonid decodes identifiers that upstream payloads send either as
// JSON strings or as JSON numbers.
package jsonid

import (
	"bytes"
	"encoding/json"
)

// ID is a string identifier. Numbers decode to their literal text, so 42 and
// "42" yield the same ID. Other JSON shapes (null, bool, object, array) decode
// to the empty ID instead of failing the enclosing document.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*id = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*id = ID(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return err
		}
		*id = ID(number.String())
	default:
		*id = ""
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}
