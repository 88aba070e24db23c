package db

import (
	"encoding/json"
	"testing"
)

func TestJSONBValueEmptyIsNull(t *testing.T) {
	v, err := JSONB(nil).Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil driver value, got %v", v)
	}
}

func TestJSONBScan(t *testing.T) {
	var j JSONB
	if err := j.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if string(j) != `{"a":1}` {
		t.Errorf("unexpected value %s", j)
	}

	if err := j.Scan(`[1,2]`); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if string(j) != `[1,2]` {
		t.Errorf("unexpected value %s", j)
	}

	if err := j.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

func TestJSONBEmbedsRaw(t *testing.T) {
	payload := struct {
		Area JSONB `json:"area"`
		None JSONB `json:"none"`
	}{Area: JSONB(`{"type":"Point","coordinates":[1,2]}`)}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"area":{"type":"Point","coordinates":[1,2]},"none":null}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}
