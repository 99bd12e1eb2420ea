package plugin

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/entity"
)

func TestParams_Connection(t *testing.T) {
	cfg, err := Params{
		ParamUsername:      " user@example.com ",
		ParamPassword:      " p@ss ",
		ParamSecurityToken: "tok",
		ParamDomain:        "test",
		ParamAPIVersion:    "v60.0",
	}.Connection()
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cfg.Username)
	assert.Equal(t, " p@ss ", cfg.Password)
	assert.Equal(t, "test", cfg.Domain)
	assert.Equal(t, "v60.0", cfg.APIVersion)

	_, err = Params{ParamUsername: "u", ParamPassword: "p", ParamSecurityToken: "t", ParamDomain: "prod"}.Connection()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamDomain, cfgErr.Parameter)
	assert.Equal(t, "domain: Domain must be login or test.", err.Error())
}

func TestParams_Bool(t *testing.T) {
	p := Params{"a": true, "b": "false", "c": "", "d": "nope", "e": 3}

	v, err := p.Bool("a", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = p.Bool("b", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = p.Bool("c", true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = p.Bool("missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = p.Bool("d", true)
	assert.Error(t, err)
	_, err = p.Bool("e", true)
	assert.Error(t, err)
}

func TestParams_String(t *testing.T) {
	p := Params{"n": 42, "s": "  x  "}
	assert.Equal(t, "42", p.String("n"))
	assert.Equal(t, "x", p.String("s"))
	assert.Equal(t, "", p.String("missing"))
}

func TestSchemaMismatchError(t *testing.T) {
	err := &SchemaMismatchError{Object: "Lead", Columns: []string{"Foo", "Bar"}}
	assert.Equal(t, "columns Foo, Bar are not available in Salesforce object Lead", err.Error())
}

func TestMarkdownLink(t *testing.T) {
	assert.Equal(t, "[SOQL](https://example.com/soql)", MarkdownLink{URL: "https://example.com/soql", Label: "SOQL"}.String())
}

type nopPlugin struct{ id string }

func (p nopPlugin) ID() string { return p.id }

func (nopPlugin) Execute(context.Context, []*entity.Entities, Reporter) (*entity.Entities, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	var gotParams Params
	Register(Descriptor{ID: "test.nop", Label: "Nop"}, func(_ context.Context, params Params, _ ...Option) (Plugin, error) {
		gotParams = params
		return nopPlugin{id: "test.nop"}, nil
	})
	assert.Panics(t, func() {
		Register(Descriptor{ID: "test.nop"}, nil)
	})

	d, ok := Lookup("test.nop")
	require.True(t, ok)
	assert.Equal(t, "Nop", d.Label)

	p, err := Create(context.Background(), "test.nop", Params{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "test.nop", p.ID())
	assert.Equal(t, "v", gotParams["k"])

	_, err = Create(context.Background(), "test.unknown", nil)
	assert.Error(t, err)

	ids := []string{}
	for _, d := range Descriptors() {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, "test.nop")
	assert.IsIncreasing(t, ids)
}

func TestOptions_Connect(t *testing.T) {
	var dialed *salesforce.Config
	o := Apply(
		WithDialer(func(_ context.Context, cfg *salesforce.Config) (salesforce.Client, error) {
			dialed = cfg
			return nil, &salesforce.AuthenticationError{Code: "INVALID_LOGIN", Message: "bad"}
		}),
		WithConnection(func(cfg *salesforce.Config) { cfg.LoginURL = "https://example.my.salesforce.com" }),
	)
	_, err := o.Connect(context.Background(), Params{ParamUsername: "u", ParamPassword: "p", ParamSecurityToken: "t"})
	assert.True(t, salesforce.IsAuthentication(err))
	require.NotNil(t, dialed)
	assert.Equal(t, "https://example.my.salesforce.com", dialed.LoginURL)

	_, err = o.Connect(context.Background(), Params{ParamUsername: "u"})
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestReporters(t *testing.T) {
	rec := &Recorder{}
	var buf bytes.Buffer
	r := Tee(rec, LogReporter{Logger: zerolog.New(&buf)}, nil)

	_, ok := rec.Last()
	assert.False(t, ok)

	r.Update(ExecutionReport{EntityCount: 1, Operation: "write"})
	r.Update(ExecutionReport{EntityCount: 3, Operation: "write", Warnings: []string{"1 record(s) failed"},
		Summary: []SummaryItem{{Key: "Created", Value: "2"}}})

	assert.Len(t, rec.Reports(), 2)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.EntityCount)
	assert.Contains(t, buf.String(), `"Created":"2"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
