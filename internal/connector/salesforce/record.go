package salesforce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Attributes is the metadata Salesforce attaches to every queried record.
type Attributes struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Field is one record field. Value holds the raw JSON so nested values
// survive untouched.
type Field struct {
	Name  string
	Value json.RawMessage
}

// SObject is a queried record with its fields in the order the API
// returned them. The attributes key is split out of Fields.
type SObject struct {
	Attributes *Attributes
	Fields     []Field
}

// Keys returns the field names in response order, without attributes.
func (o *SObject) Keys() []string {
	keys := make([]string, 0, len(o.Fields))
	for _, f := range o.Fields {
		keys = append(keys, f.Name)
	}
	return keys
}

// Get returns the raw value of a field.
func (o *SObject) Get(name string) (json.RawMessage, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the stringified value of a field, "" when absent.
func (o *SObject) String(name string) string {
	v, ok := o.Get(name)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Map converts the record to a generic map, dropping attributes.
func (o *SObject) Map() map[string]any {
	m := make(map[string]any, len(o.Fields))
	for _, f := range o.Fields {
		var v any
		dec := json.NewDecoder(bytes.NewReader(f.Value))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			v = string(f.Value)
		}
		m[f.Name] = v
	}
	return m
}

// UnmarshalJSON decodes an object keeping key order.
func (o *SObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sobject: expected object, found %v", tok)
	}
	o.Attributes = nil
	o.Fields = o.Fields[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("sobject: expected key, found %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("sobject: field %s: %w", key, err)
		}
		if key == "attributes" {
			var attrs Attributes
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return fmt.Errorf("sobject: attributes: %w", err)
			}
			o.Attributes = &attrs
			continue
		}
		o.Fields = append(o.Fields, Field{Name: key, Value: raw})
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the record with attributes first, then fields in order.
func (o SObject) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	if o.Attributes != nil {
		attrs, err := json.Marshal(o.Attributes)
		if err != nil {
			return nil, err
		}
		b.WriteString(`"attributes":`)
		b.Write(attrs)
		first = false
	}
	for _, f := range o.Fields {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Quote(f.Name))
		b.WriteByte(':')
		if len(f.Value) == 0 {
			b.WriteString("null")
		} else {
			b.Write(f.Value)
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Stringify renders a raw JSON value as a cell string: strings as-is,
// numbers and booleans as their literal, null as "", and objects or
// arrays as compact JSON.
func Stringify(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		var b bytes.Buffer
		if err := json.Compact(&b, trimmed); err == nil {
			return b.String()
		}
	}
	return string(trimmed)
}

// QueryResult is the envelope of a query. Records from every page are
// accumulated; Pages counts the requests made.
type QueryResult struct {
	TotalSize      int       `json:"totalSize"`
	Done           bool      `json:"done"`
	NextRecordsURL string    `json:"nextRecordsUrl,omitempty"`
	Records        []SObject `json:"records"`
	Pages          int       `json:"pages,omitempty"`
}

// Envelope returns the metadata of the result without records.
func (r *QueryResult) Envelope() map[string]any {
	env := map[string]any{
		"totalSize": r.TotalSize,
		"done":      r.Done,
		"pages":     r.Pages,
	}
	if r.NextRecordsURL != "" {
		env["nextRecordsUrl"] = r.NextRecordsURL
	}
	return env
}
