// Package canonical produces a deterministic JSON encoding suitable for
// hashing: object keys are sorted lexicographically at every nesting level,
// numbers are rendered in a single fixed decimal form, and strings are
// minimally escaped UTF-8. Two semantically identical values always
// canonicalize to byte-identical output regardless of field insertion order.
//
// null and an absent key are distinct: a key explicitly set to null is
// encoded as null, an absent key is simply not present in the output.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SerializationError reports a value that cannot be canonicalized, such as
// NaN, an infinity, or a self-referential structure.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canonicalize: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("canonicalize: %s", e.Reason)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Marshal encodes v as canonical JSON.
//
// The value is first passed through encoding/json, which rejects NaN,
// infinities, cyclic structures, and non-JSON types. The intermediate form
// is then re-encoded with sorted keys and normalized numbers.
func Marshal(v any) ([]byte, error) {
	var pre bytes.Buffer
	enc := json.NewEncoder(&pre)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, &SerializationError{Reason: "value is not JSON-serializable", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(pre.Bytes()))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, &SerializationError{Reason: "re-decode intermediate JSON", Err: err}
	}

	var out bytes.Buffer
	if err := encodeValue(&out, decoded); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return encodeNumber(buf, val)
	case string:
		return encodeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return &SerializationError{Reason: fmt.Sprintf("unexpected intermediate type %T", v)}
	}
	return nil
}

// encodeNumber normalizes a JSON number to a single canonical form: integers
// that fit in int64 keep their plain decimal rendering; everything else is
// parsed as float64 and re-encoded in Go's shortest round-trip form, which
// avoids scientific notation unless the magnitude requires it. "1.50",
// "1.5" and "15e-1" all canonicalize to "1.5".
func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return &SerializationError{Reason: fmt.Sprintf("number %q out of range", s), Err: err}
	}
	rendered, err := json.Marshal(f)
	if err != nil {
		return &SerializationError{Reason: fmt.Sprintf("render number %q", s), Err: err}
	}
	// Negative zero does not survive a decimal store round trip, so it
	// must not reach the hash preimage.
	if string(rendered) == "-0" {
		rendered = []byte("0")
	}
	buf.Write(rendered)
	return nil
}

// encodeString writes s as a JSON string with minimal escaping: only control
// characters, the quote, and the backslash are escaped. HTML-significant
// characters pass through unescaped.
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return &SerializationError{Reason: "encode string", Err: err}
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
