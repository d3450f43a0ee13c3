package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Field is a single named cell of an imported row.
type Field struct {
	Name  string
	Value string
}

// Payload is an imported row with its original column order preserved.
// It is the canonical representation of a record; every display and query
// field is read from here.
type Payload []Field

// NewPayload zips a header with a record. Extra cells are dropped and
// missing cells become empty strings.
func NewPayload(header, rec []string) Payload {
	p := make(Payload, 0, len(header))
	for i, name := range header {
		v := ""
		if i < len(rec) {
			v = rec[i]
		}
		p = append(p, Field{Name: name, Value: v})
	}
	return p
}

// Get returns the value of the first field with the given name.
func (p Payload) Get(name string) (string, bool) {
	for _, f := range p {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing field or appends a new one.
func (p *Payload) Set(name, value string) {
	for i := range *p {
		if (*p)[i].Name == name {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Field{Name: name, Value: value})
}

// Names returns the column names in order.
func (p Payload) Names() []string {
	out := make([]string, len(p))
	for i, f := range p {
		out[i] = f.Name
	}
	return out
}

// Values returns the cell values in order.
func (p Payload) Values() []string {
	out := make([]string, len(p))
	for i, f := range p {
		out[i] = f.Value
	}
	return out
}

// Blank reports whether every cell is empty after trimming.
func (p Payload) Blank() bool {
	for _, f := range p {
		if strings.TrimSpace(f.Value) != "" {
			return false
		}
	}
	return true
}

// SearchText is the lowercased concatenation of all values, used for
// substring keyword matching.
func (p Payload) SearchText() string {
	return strings.ToLower(strings.Join(p.Values(), " "))
}

// Clone returns a deep copy.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

// MarshalJSON encodes the payload as a JSON object keeping column order.
// HTML characters are not escaped so the encoded length matches what is
// shown to the model.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, f.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values keeping key order.
func (p *Payload) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.Errorf("payload: expected object, got %v", tok)
	}
	out := Payload{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return eris.Errorf("payload: expected string key, got %v", kt)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, Field{Name: key, Value: stringify(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// stringify renders non-string JSON values the way they appeared in the source.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
