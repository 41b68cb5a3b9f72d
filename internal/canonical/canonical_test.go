package canonical_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/veridianhq/veridian-ledger/internal/canonical"
)

func TestMarshal_sortsKeysAtEveryLevel(t *testing.T) {
	got, err := canonical.Marshal(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"y": true, "x": false},
		"mike":  []any{map[string]any{"b": 2, "a": 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"alpha":{"x":false,"y":true},"mike":[{"a":1,"b":2}],"zebra":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshal_deterministicAcrossInsertionOrder(t *testing.T) {
	a := map[string]any{"actor": "ann@example.com", "action": "submitted", "seq": 7}
	b := map[string]any{"seq": 7, "action": "submitted", "actor": "ann@example.com"}

	ca, err := canonical.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := canonical.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ca) != string(cb) {
		t.Errorf("insertion order changed output: %s vs %s", ca, cb)
	}
}

func TestMarshal_numberNormalization(t *testing.T) {
	cases := []struct {
		name string
		in   string // raw JSON fed through json.RawMessage
		want string
	}{
		{"trailing zeros", `{"n":1.50}`, `{"n":1.5}`},
		{"exponent form", `{"n":15e-1}`, `{"n":1.5}`},
		{"plain int", `{"n":42}`, `{"n":42}`},
		{"negative", `{"n":-0.25}`, `{"n":-0.25}`},
		{"large int", `{"n":9007199254740993}`, `{"n":9007199254740993}`},
		{"negative zero float", `{"n":-0.0}`, `{"n":0}`},
		{"negative zero int", `{"n":-0}`, `{"n":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := canonical.Marshal(json.RawMessage(tc.in))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMarshal_nullDistinctFromAbsent(t *testing.T) {
	withNull, err := canonical.Marshal(map[string]any{"a": 1, "b": nil})
	if err != nil {
		t.Fatal(err)
	}
	without, err := canonical.Marshal(map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(withNull) == string(without) {
		t.Error("explicit null conflated with absent key")
	}
	if string(withNull) != `{"a":1,"b":null}` {
		t.Errorf("unexpected encoding: %s", withNull)
	}
}

func TestMarshal_noHTMLEscaping(t *testing.T) {
	got, err := canonical.Marshal(map[string]any{"q": "a<b>&c"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"q":"a<b>&c"}` {
		t.Errorf("HTML characters were escaped: %s", got)
	}
}

func TestMarshal_rejectsNaN(t *testing.T) {
	_, err := canonical.Marshal(map[string]any{"n": math.NaN()})
	if err == nil {
		t.Fatal("expected error for NaN")
	}
	if !strings.Contains(err.Error(), "canonicalize") {
		t.Errorf("unexpected error: %v", err)
	}
	var serr *canonical.SerializationError
	if !errors.As(err, &serr) {
		t.Errorf("expected *SerializationError, got %T", err)
	}
}

func TestMarshal_rejectsCycle(t *testing.T) {
	type node struct {
		Next *node `json:"next"`
	}
	n := &node{}
	n.Next = n

	if _, err := canonical.Marshal(n); err == nil {
		t.Fatal("expected error for cyclic structure")
	}
}

func TestMarshal_rejectsNonJSONType(t *testing.T) {
	if _, err := canonical.Marshal(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected error for channel value")
	}
}
