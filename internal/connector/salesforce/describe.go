package salesforce

import (
	"context"
	"net/url"
	"strings"
)

// FieldDescribe is the metadata of one object field.
type FieldDescribe struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Length     int    `json:"length"`
	Precision  int    `json:"precision"`
	Scale      int    `json:"scale"`
	Nillable   bool   `json:"nillable"`
	Createable bool   `json:"createable"`
	Updateable bool   `json:"updateable"`
	ExternalID bool   `json:"externalId"`
	IDLookup   bool   `json:"idLookup"`
	Custom     bool   `json:"custom"`
	Calculated bool   `json:"calculated"`
	Unique     bool   `json:"unique"`
}

// DescribeResult is the describe payload of one object.
type DescribeResult struct {
	Name       string          `json:"name"`
	Label      string          `json:"label"`
	Custom     bool            `json:"custom"`
	Queryable  bool            `json:"queryable"`
	Createable bool            `json:"createable"`
	Updateable bool            `json:"updateable"`
	Fields     []FieldDescribe `json:"fields"`
}

// FieldNames returns the field names in describe order.
func (d *DescribeResult) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// HasField reports whether name is a field of the object. Salesforce field
// names are case-insensitive.
func (d *DescribeResult) HasField(name string) bool {
	for _, f := range d.Fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// GlobalObject is one entry of the global describe.
type GlobalObject struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Custom     bool   `json:"custom"`
	Queryable  bool   `json:"queryable"`
	Createable bool   `json:"createable"`
	Updateable bool   `json:"updateable"`
}

// Describe fetches the field metadata of object.
func (s *Salesforce) Describe(ctx context.Context, object string) (*DescribeResult, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}
	resp, err := s.Client.Get(ctx, s.config.dataPath("sobjects", url.PathEscape(object), "describe"), nil)
	if err != nil {
		return nil, classify("describe "+object, err)
	}
	var out DescribeResult
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DescribeGlobal lists every object visible to the session.
func (s *Salesforce) DescribeGlobal(ctx context.Context) ([]GlobalObject, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}
	resp, err := s.Client.Get(ctx, s.config.dataPath("sobjects"), nil)
	if err != nil {
		return nil, classify("describe global", err)
	}
	var out struct {
		SObjects []GlobalObject `json:"sobjects"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out.SObjects, nil
}
