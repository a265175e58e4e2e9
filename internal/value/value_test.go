package value

import (
	"encoding/json"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	in := []byte(`{"name":"alice","age":30,"active":true,"tags":["a","b"],"meta":{"x":1.5},"none":null}`)

	var v Value
	if err := json.Unmarshal(in, &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Kind() != KindMap {
		t.Fatalf("Kind = %v, want map", v.Kind())
	}

	m, _ := v.MapValue()
	if s, ok := m["name"].Str(); !ok || s != "alice" {
		t.Errorf("name = %q, %v", s, ok)
	}
	if n, ok := m["age"].Num(); !ok || n != 30 {
		t.Errorf("age = %v, %v", n, ok)
	}
	if b, ok := m["active"].Boolean(); !ok || !b {
		t.Errorf("active = %v, %v", b, ok)
	}
	if l, ok := m["tags"].ListValue(); !ok || len(l) != 2 {
		t.Errorf("tags = %v, %v", l, ok)
	}
	if !m["none"].IsNull() {
		t.Error("none should be null")
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var a, b any
	if err := json.Unmarshal(in, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &b); err != nil {
		t.Fatal(err)
	}
	if string(mustJSON(t, a)) != string(mustJSON(t, b)) {
		t.Errorf("round trip changed content: %s vs %s", in, out)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() || v.Kind() != KindNull {
		t.Errorf("zero value Kind = %v, want null", v.Kind())
	}
}

func TestPreview(t *testing.T) {
	v := Map(map[string]Value{
		"b":    Number(2),
		"a":    String("x"),
		"list": List([]Value{Bool(true), Null()}),
	})
	want := "{a=x b=2 list=[true null]}"
	if got := v.Preview(); got != want {
		t.Errorf("Preview = %q, want %q", got, want)
	}

	// Stable across calls despite map iteration order.
	if v.Preview() != v.Preview() {
		t.Error("Preview is not stable")
	}
}
