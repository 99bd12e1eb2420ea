package soqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce/salesforcetest"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/plugin/plugintest"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

func newWithClient(t *testing.T, client *plugintest.Client, extra plugin.Params, opts ...plugin.Option) *Plugin {
	t.Helper()
	opts = append([]plugin.Option{plugin.WithDialer(client.Dialer(nil))}, opts...)
	p, err := New(context.Background(), plugintest.Credentials(extra), opts...)
	require.NoError(t, err)
	return p
}

func TestNew_ConfigurationErrors(t *testing.T) {
	dialed := false
	dialer := plugin.WithDialer(func(context.Context, *salesforce.Config) (salesforce.Client, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	})

	cases := []struct {
		name   string
		params plugin.Params
		param  string
	}{
		{"missing username", plugin.Params{"password": "p", "security_token": "t", ParamQuery: "SELECT Id FROM Lead"}, "username"},
		{"empty password", plugin.Params{"username": "u", "password": "", "security_token": "t", ParamQuery: "SELECT Id FROM Lead"}, "password"},
		{"missing token", plugin.Params{"username": "u", "password": "p", ParamQuery: "SELECT Id FROM Lead"}, "security_token"},
		{"missing query", plugintest.Credentials(nil), ParamQuery},
		{"blank query", plugintest.Credentials(plugin.Params{ParamQuery: "   "}), ParamQuery},
		{"bad parse flag", plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id FROM Lead", ParamParseSOQL: "maybe"}), ParamParseSOQL},
		{"dataset without writer", plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id FROM Lead", plugin.ParamDataset: "leads"}), plugin.ParamDataset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.params, dialer)
			var cfgErr *plugin.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.param, cfgErr.Parameter)
		})
	}
	assert.False(t, dialed)
}

func TestNew_ParseErrorIsFatal(t *testing.T) {
	client := plugintest.NewClient(nil)
	_, err := New(context.Background(),
		plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id Lead"}),
		plugin.WithDialer(client.Dialer(nil)))
	var pe *soql.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, client.Queries)
}

func TestNew_ParseDisabled(t *testing.T) {
	client := plugintest.NewClient(nil)
	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id Lead", ParamParseSOQL: "false"})
	assert.Nil(t, p.Parsed())

	p = newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id, Name FROM Lead"})
	require.NotNil(t, p.Parsed())
	assert.Equal(t, []string{"Id", "Name"}, p.Parsed().Fields)
}

func TestNew_PassesConnectionParameters(t *testing.T) {
	client := plugintest.NewClient(nil)
	var cfg *salesforce.Config
	_, err := New(context.Background(),
		plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id FROM Lead", "domain": "test", "api_version": "58.0"}),
		plugin.WithDialer(client.Dialer(&cfg)))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "integration@example.com", cfg.Username)
	assert.Equal(t, "test", cfg.Domain)
	assert.Equal(t, "58.0", cfg.APIVersion)
}

func TestExecute_FlattensRecords(t *testing.T) {
	client := plugintest.NewClient(nil)
	client.QueryResult = &salesforce.QueryResult{
		TotalSize: 2,
		Done:      true,
		Pages:     1,
		Records: plugintest.Records(`[
			{"attributes": {"type": "Lead", "url": "/x/1"}, "LastName": "Hopper", "FirstName": "Grace", "NumberOfEmployees": 5000, "Account": {"Name": "Navy"}},
			{"attributes": {"type": "Lead", "url": "/x/2"}, "FirstName": "Ada", "LastName": "Lovelace", "NumberOfEmployees": null, "Account": null}
		]`),
	}
	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT LastName, FirstName, NumberOfEmployees, Account.Name FROM Lead"})

	rec := &plugin.Recorder{}
	out, err := p.Execute(context.Background(), nil, rec)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, []string{"LastName", "FirstName", "NumberOfEmployees", "Account"}, out.Schema.Columns())
	require.Equal(t, 2, out.Len())
	assert.Equal(t, [][]string{{"Hopper"}, {"Grace"}, {"5000"}, {`{"Name":"Navy"}`}}, out.Entities[0].Values)
	assert.Equal(t, [][]string{{"Lovelace"}, {"Ada"}, {""}, {""}}, out.Entities[1].Values)
	assert.NotEqual(t, out.Entities[0].URI, out.Entities[1].URI)

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.EntityCount)
	assert.Empty(t, last.Warnings)
}

func TestExecute_EmptyResult(t *testing.T) {
	client := plugintest.NewClient(nil)
	client.QueryResult = &salesforce.QueryResult{TotalSize: 0, Done: true, Pages: 1}
	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id FROM Lead WHERE Id = '1'"})

	out, err := p.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Empty(t, out.Schema.Columns())
	require.NoError(t, out.Validate())
}

func TestExecute_RemoteRequestErrorYieldsEmpty(t *testing.T) {
	client := plugintest.NewClient(nil)
	client.QueryErr = &salesforce.RemoteRequestError{StatusCode: 400, Code: "MALFORMED_QUERY", Message: "unexpected token", Resource: "query"}
	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id FROM Lead", ParamParseSOQL: false})

	rec := &plugin.Recorder{}
	out, err := p.Execute(context.Background(), nil, rec)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())

	last, ok := rec.Last()
	require.True(t, ok)
	require.Len(t, last.Warnings, 1)
	assert.Contains(t, last.Warnings[0], "MALFORMED_QUERY")
}

func TestExecute_OtherErrorsPropagate(t *testing.T) {
	client := plugintest.NewClient(nil)
	client.QueryErr = errors.New("connection reset")
	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id FROM Lead"})

	_, err := p.Execute(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestExecute_WritesEnvelopeToDataset(t *testing.T) {
	client := plugintest.NewClient(nil)
	client.QueryResult = &salesforce.QueryResult{
		TotalSize: 1,
		Done:      true,
		Pages:     1,
		Records:   plugintest.Records(`[{"attributes": {"type": "Lead"}, "Id": "00Q1"}]`),
	}
	datasets := &plugintest.Datasets{}

	p := newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id FROM Lead", plugin.ParamDataset: "leads"},
		plugin.WithDatasetWriter(datasets))
	_, err := p.Execute(context.Background(), nil, nil)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(datasets.Last("leads"), &env))
	assert.Equal(t, float64(1), env["totalSize"])
	assert.Equal(t, true, env["done"])

	// No dataset configured, nothing written.
	datasets = &plugintest.Datasets{}
	p = newWithClient(t, client, plugin.Params{ParamQuery: "SELECT Id FROM Lead"}, plugin.WithDatasetWriter(datasets))
	_, err = p.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, datasets.Data)
}

func TestFlatten_RowWidthMatchesSchema(t *testing.T) {
	records := plugintest.Records(`[
		{"attributes": {"type": "Contact"}, "Id": "1", "Name": "a"},
		{"attributes": {"type": "Contact"}, "Name": "b", "Id": "2"},
		{"attributes": {"type": "Contact"}, "Id": "3"}
	]`)
	out := Flatten(records)
	require.NoError(t, out.Validate())
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"Id", "Name"}, out.Schema.Columns())
	assert.Equal(t, [][]string{{"2"}, {"b"}}, out.Entities[1].Values)
	assert.Equal(t, [][]string{{"3"}, {""}}, out.Entities[2].Values)
	assert.Equal(t, entity.DefaultTypeURI, out.Schema.TypeURI)
}

func TestStub_QueryAcrossPages(t *testing.T) {
	stub := salesforcetest.NewServer()
	stub.PageSize = 1

	p, err := New(context.Background(),
		plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id, Name, Email FROM Contact"}),
		plugintest.Stub(stub))
	require.NoError(t, err)

	out, err := p.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"Id", "Name", "Email"}, out.Schema.Columns())
	assert.Equal(t, [][]string{{"003000000000002AAA"}, {"Alan Turing"}, {""}}, out.Entities[1].Values)
}

func TestStub_RejectedLoginFailsConstruction(t *testing.T) {
	stub := salesforcetest.NewServer()
	_, err := New(context.Background(),
		plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id FROM Contact", "password": "wrong"}),
		plugintest.Stub(stub))
	var authErr *salesforce.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Zero(t, stub.CallCount("/query"))
}

func TestRegistry(t *testing.T) {
	d, ok := plugin.Lookup(ID)
	require.True(t, ok)
	assert.Equal(t, "SOQL query (Salesforce)", d.Label)

	client := plugintest.NewClient(nil)
	p, err := plugin.Create(context.Background(), ID,
		plugintest.Credentials(plugin.Params{ParamQuery: "SELECT Id FROM Lead"}),
		plugin.WithDialer(client.Dialer(nil)))
	require.NoError(t, err)
	assert.Equal(t, ID, p.ID())
}
