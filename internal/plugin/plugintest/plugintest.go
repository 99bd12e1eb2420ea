// Package plugintest provides test doubles for plugin packages.
package plugintest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce/salesforcetest"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
)

// Client is an in-memory salesforce.Client that records every call.
type Client struct {
	mu sync.Mutex

	// QueryResult is returned by QueryAll unless QueryErr is set.
	QueryResult *salesforce.QueryResult
	QueryErr    error

	// Objects maps object names to their describe result.
	Objects   map[string]*salesforce.DescribeResult
	UpsertErr error

	// UpsertFunc computes the result of one submitted record. The default
	// creates records without an Id and updates the others.
	UpsertFunc func(object string, record map[string]any) salesforce.BulkResult

	Queries   []string
	Describes []string
	Upserts   []Upsert
}

// Upsert is one recorded BulkUpsert call.
type Upsert struct {
	Object          string
	ExternalIDField string
	Records         []map[string]any
}

var _ salesforce.Client = (*Client)(nil)

// NewClient returns a client describing the given objects, each as a list
// of field names.
func NewClient(objects map[string][]string) *Client {
	c := &Client{Objects: map[string]*salesforce.DescribeResult{}}
	for name, fields := range objects {
		d := &salesforce.DescribeResult{Name: name}
		for _, f := range fields {
			d.Fields = append(d.Fields, salesforce.FieldDescribe{Name: f})
		}
		c.Objects[name] = d
	}
	return c
}

func (c *Client) QueryAll(_ context.Context, soql string) (*salesforce.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, soql)
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	if c.QueryResult == nil {
		return &salesforce.QueryResult{Done: true, Pages: 1}, nil
	}
	return c.QueryResult, nil
}

func (c *Client) Describe(_ context.Context, object string) (*salesforce.DescribeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Describes = append(c.Describes, object)
	for name, d := range c.Objects {
		if strings.EqualFold(name, object) {
			return d, nil
		}
	}
	return nil, &salesforce.RemoteRequestError{StatusCode: 404, Code: "NOT_FOUND", Message: "The requested resource does not exist", Resource: "describe"}
}

func (c *Client) DescribeGlobal(context.Context) ([]salesforce.GlobalObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]salesforce.GlobalObject, 0, len(c.Objects))
	for name := range c.Objects {
		out = append(out, salesforce.GlobalObject{Name: name, Queryable: true})
	}
	return out, nil
}

func (c *Client) BulkUpsert(_ context.Context, object string, records []map[string]any, externalIDField string) ([]salesforce.BulkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Upserts = append(c.Upserts, Upsert{Object: object, ExternalIDField: externalIDField, Records: records})
	if c.UpsertErr != nil {
		return nil, c.UpsertErr
	}
	out := make([]salesforce.BulkResult, 0, len(records))
	for _, rec := range records {
		if c.UpsertFunc != nil {
			out = append(out, c.UpsertFunc(object, rec))
			continue
		}
		if id, ok := rec[externalIDField].(string); ok && id != "" {
			out = append(out, salesforce.BulkResult{Success: true, ID: id})
			continue
		}
		out = append(out, salesforce.BulkResult{Success: true, Created: true, ID: "NEW"})
	}
	return out, nil
}

// UpsertCount returns the number of BulkUpsert calls.
func (c *Client) UpsertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Upserts)
}

// Dialer returns a plugin.Dialer that hands out c and keeps the last
// configuration it was asked to dial.
func (c *Client) Dialer(seen **salesforce.Config) plugin.Dialer {
	return func(_ context.Context, cfg *salesforce.Config) (salesforce.Client, error) {
		if seen != nil {
			*seen = cfg
		}
		return c, nil
	}
}

// Records decodes a JSON array of records in field order.
func Records(data string) []salesforce.SObject {
	var out []salesforce.SObject
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		panic(err)
	}
	return out
}

// Datasets is an in-memory plugin.DatasetWriter.
type Datasets struct {
	mu   sync.Mutex
	Data map[string][][]byte
	Err  error
}

func (d *Datasets) WriteDataset(_ context.Context, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	if d.Data == nil {
		d.Data = map[string][][]byte{}
	}
	d.Data[id] = append(d.Data[id], append([]byte(nil), data...))
	return nil
}

// Last returns the most recent payload written to id.
func (d *Datasets) Last(id string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.Data[id]
	if len(w) == 0 {
		return nil
	}
	return w[len(w)-1]
}

// Credentials returns valid connection parameters merged with extra.
func Credentials(extra plugin.Params) plugin.Params {
	p := plugin.Params{
		plugin.ParamUsername:      "integration@example.com",
		plugin.ParamPassword:      "secret",
		plugin.ParamSecurityToken: "token",
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

// Stub points the plugin connection at an in-process stub org.
func Stub(stub *salesforcetest.Server) plugin.Option {
	return plugin.WithConnection(func(cfg *salesforce.Config) {
		stubCfg := stub.Config()
		cfg.LoginURL = stubCfg.LoginURL
		cfg.Transport = stubCfg.Transport
		cfg.RateLimit = stubCfg.RateLimit
		cfg.PollInterval = stubCfg.PollInterval
	})
}
