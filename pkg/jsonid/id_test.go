package jsonid

import (
	"encoding/json"
	"testing"
)

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		document string
		expected ID
	}{
		{name: "string", document: `{"id":"u-9"}`, expected: "u-9"},
		{name: "integer", document: `{"id":42}`, expected: "42"},
		{name: "large integer", document: `{"id":9007199254740993}`, expected: "9007199254740993"},
		{name: "negative", document: `{"id":-7}`, expected: "-7"},
		{name: "null", document: `{"id":null}`, expected: ""},
		{name: "object", document: `{"id":{"value":1}}`, expected: ""},
		{name: "bool", document: `{"id":true}`, expected: ""},
		{name: "absent", document: `{}`, expected: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var payload struct {
				ID ID `json:"id"`
			}
			if err := json.Unmarshal([]byte(testCase.document), &payload); err != nil {
				t.Fatalf("unmarshal %s: %v", testCase.document, err)
			}
			if payload.ID != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, payload.ID)
			}
		})
	}
}

func TestIDMarshalsAsString(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(struct {
		ID ID `json:"id"`
	}{ID: "42"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `{"id":"42"}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}
