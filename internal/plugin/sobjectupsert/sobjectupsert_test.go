package sobjectupsert

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce/salesforcetest"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/plugin/plugintest"
	"github.com/nucleus/ucl-salesforce/internal/plugin/soqlquery"
)

var leadFields = []string{"Id", "FirstName", "LastName", "Company", "Email"}

func rows(columns []string, values ...[]string) *entity.Entities {
	e := &entity.Entities{Schema: entity.NewSchema(entity.DefaultTypeURI, columns)}
	for _, row := range values {
		cells := make([][]string, len(row))
		for i, v := range row {
			cells[i] = []string{v}
		}
		e.Entities = append(e.Entities, &entity.Entity{URI: entity.NewURI(), Values: cells})
	}
	return e
}

func newWithClient(t *testing.T, client *plugintest.Client, opts ...plugin.Option) *Plugin {
	t.Helper()
	opts = append([]plugin.Option{plugin.WithDialer(client.Dialer(nil))}, opts...)
	p, err := New(context.Background(), plugintest.Credentials(plugin.Params{ParamObject: "Lead"}), opts...)
	require.NoError(t, err)
	return p
}

type auditRecorder struct {
	objects []string
	results [][]salesforce.BulkResult
}

func (a *auditRecorder) Record(_ context.Context, object string, results []salesforce.BulkResult) error {
	a.objects = append(a.objects, object)
	a.results = append(a.results, results)
	return nil
}

func TestNew_ObjectRequiredBeforeCredentials(t *testing.T) {
	dialed := false
	dialer := plugin.WithDialer(func(context.Context, *salesforce.Config) (salesforce.Client, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	})

	for _, params := range []plugin.Params{
		{},
		{ParamObject: ""},
		plugintest.Credentials(plugin.Params{ParamObject: "  "}),
	} {
		_, err := New(context.Background(), params, dialer)
		var cfgErr *plugin.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ParamObject, cfgErr.Parameter)
		assert.Equal(t, "Salesforce Object API Name is required.", cfgErr.Message)
	}

	_, err := New(context.Background(), plugin.Params{ParamObject: "Lead", "username": "u"}, dialer)
	var cfgErr *plugin.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "password", cfgErr.Parameter)
	assert.False(t, dialed)
}

func TestRecords_OmitsEmptyID(t *testing.T) {
	batch := rows([]string{"ID", "LastName", "Email"},
		[]string{"", "Hopper", ""},
		[]string{"00Q1", "Lovelace", "ada@example.com"},
	)
	batch.Entities[1].Values[2] = []string{"a@example.com", "b@example.com"}

	recs := Records(batch)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"LastName": "Hopper", "Email": ""}, recs[0])
	assert.Equal(t, map[string]any{"ID": "00Q1", "LastName": "Lovelace", "Email": "a@example.com,b@example.com"}, recs[1])
}

func TestExecute_InsertScenario(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	audit := &auditRecorder{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newWithClient(t, client, plugin.WithAudit(audit), plugin.WithClock(func() time.Time { return now }))

	rec := &plugin.Recorder{}
	out, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"id", "LastName", "Company"}, []string{"", "Hopper", "Navy"}),
	}, rec)
	require.NoError(t, err)
	assert.Nil(t, out)

	require.Len(t, client.Upserts, 1)
	up := client.Upserts[0]
	assert.Equal(t, "Lead", up.Object)
	assert.Equal(t, ExternalIDField, up.ExternalIDField)
	require.Len(t, up.Records, 1)
	assert.NotContains(t, up.Records[0], "id")

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, []plugin.SummaryItem{
		{Key: "Created", Value: "1"},
		{Key: "Updated", Value: "0"},
		{Key: "Failed", Value: "0"},
	}, last.Summary)
	assert.Empty(t, last.Warnings)

	require.Len(t, audit.results, 1)
	assert.Equal(t, now.UnixMilli(), audit.results[0][0].SubmittedAt)
}

func TestExecute_SchemaMismatchSubmitsNothing(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	p := newWithClient(t, client)

	_, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"LastName", "Shoe_Size__c", "Nickname"}, []string{"Hopper", "9", "Amazing Grace"}),
	}, nil)
	var schemaErr *plugin.SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Lead", schemaErr.Object)
	assert.Equal(t, []string{"Shoe_Size__c", "Nickname"}, schemaErr.Columns)
	assert.Zero(t, client.UpsertCount())
}

func TestExecute_RaggedRowRejectedBeforeDescribe(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	p := newWithClient(t, client)

	batch := rows([]string{"FirstName", "LastName", "Company"},
		[]string{"Grace", "Hopper", "Navy"},
		[]string{"Ada", "Lovelace"},
	)
	_, err := p.Execute(context.Background(), []*entity.Entities{batch}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 cells, schema has 3 columns")
	assert.Empty(t, client.Describes)
	assert.Zero(t, client.UpsertCount())
}

func TestExecute_NilRowRejected(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	p := newWithClient(t, client)

	batch := rows([]string{"LastName"}, []string{"Hopper"})
	batch.Entities = append(batch.Entities, nil)
	var err error
	require.NotPanics(t, func() {
		_, err = p.Execute(context.Background(), []*entity.Entities{batch}, nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 is nil")
	assert.Empty(t, client.Describes)
	assert.Zero(t, client.UpsertCount())
}

func TestExecute_ColumnsMatchCaseInsensitively(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	p := newWithClient(t, client)

	_, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"id", "lastname"}, []string{"00Q1", "Hopper"}),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.UpsertCount())
}

func TestExecute_ReportsProgressPerBatch(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	client.UpsertFunc = func(_ string, rec map[string]any) salesforce.BulkResult {
		if rec["LastName"] == "" {
			return salesforce.BulkResult{Errors: []salesforce.BulkError{{StatusCode: "REQUIRED_FIELD_MISSING", Message: "Required fields are missing: [LastName]"}}}
		}
		if _, ok := rec["Id"]; ok {
			return salesforce.BulkResult{Success: true, ID: rec["Id"].(string)}
		}
		return salesforce.BulkResult{Success: true, Created: true, ID: "00QNEW"}
	}
	p := newWithClient(t, client)

	rec := &plugin.Recorder{}
	_, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"Id", "LastName"}, []string{"", "Hopper"}, []string{"00Q1", "Lovelace"}),
		rows([]string{"LastName"}, []string{""}, []string{""}),
	}, rec)
	require.NoError(t, err)

	reports := rec.Reports()
	require.Len(t, reports, 3)
	assert.Equal(t, 2, reports[0].EntityCount)
	assert.Equal(t, 4, reports[1].EntityCount)

	final := reports[2]
	assert.Equal(t, 4, final.EntityCount)
	assert.Equal(t, []plugin.SummaryItem{
		{Key: "Created", Value: "1"},
		{Key: "Updated", Value: "1"},
		{Key: "Failed", Value: "2"},
	}, final.Summary)
	require.Len(t, final.Warnings, 1)
	assert.Equal(t, "2 record(s) failed: REQUIRED_FIELD_MISSING: Required fields are missing: [LastName]", final.Warnings[0])
}

func TestExecute_RejectedBatchMarksRowsFailed(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	client.UpsertErr = &salesforce.RemoteRequestError{StatusCode: 400, Code: "BATCH_Failed", Message: "InvalidBatch : Field name not found", Resource: "bulk"}
	p := newWithClient(t, client)

	rec := &plugin.Recorder{}
	_, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"LastName"}, []string{"Hopper"}, []string{"Lovelace"}),
	}, rec)
	require.NoError(t, err)

	last, _ := rec.Last()
	assert.Equal(t, "2", last.Summary[2].Value)
	require.Len(t, last.Warnings, 1)
	assert.Contains(t, last.Warnings[0], "Field name not found")
}

func TestExecute_TransportErrorPropagates(t *testing.T) {
	client := plugintest.NewClient(map[string][]string{"Lead": leadFields})
	client.UpsertErr = errors.New("connection reset by peer")
	p := newWithClient(t, client)

	_, err := p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"LastName"}, []string{"Hopper"}),
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestSummarize_OrderIndependent(t *testing.T) {
	results := []salesforce.BulkResult{
		{Success: true, Created: true, ID: "1"},
		{Success: true, ID: "2"},
		{Errors: []salesforce.BulkError{{StatusCode: "DUPLICATE_VALUE", Message: "duplicate"}}},
		{Errors: []salesforce.BulkError{{StatusCode: "INVALID_EMAIL_ADDRESS", Message: "bad email"}}},
		{Errors: []salesforce.BulkError{{StatusCode: "DUPLICATE_VALUE", Message: "duplicate"}}},
		{Success: true, Created: true, ID: "3"},
	}
	want := Summarize(results)
	assert.Equal(t, 2, want.Created)
	assert.Equal(t, 1, want.Updated)
	assert.Equal(t, 3, want.Failed)
	assert.Equal(t, []string{"DUPLICATE_VALUE: duplicate", "INVALID_EMAIL_ADDRESS: bad email"}, want.Messages)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]salesforce.BulkResult(nil), results...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Summarize(shuffled))
	}

	assert.Equal(t, "", Summarize(nil).Warning())
}

func TestSummary_WarningWithoutMessages(t *testing.T) {
	s := Summarize([]salesforce.BulkResult{
		{Success: true, Created: true, ID: "1"},
		{Success: false},
	})
	assert.Equal(t, 1, s.Failed)
	assert.Empty(t, s.Messages)
	assert.Equal(t, "1 record(s) failed", s.Warning())

	assert.Equal(t, "", Summarize([]salesforce.BulkResult{{Success: true, ID: "2"}}).Warning())
}

func TestStub_InsertLead(t *testing.T) {
	stub := salesforcetest.NewServer()
	p, err := New(context.Background(), plugintest.Credentials(plugin.Params{ParamObject: "Lead"}), plugintest.Stub(stub))
	require.NoError(t, err)

	rec := &plugin.Recorder{}
	_, err = p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"id", "FirstName", "LastName", "Company"}, []string{"", "Katherine", "Johnson", "NASA"}),
	}, rec)
	require.NoError(t, err)

	last, _ := rec.Last()
	assert.Equal(t, []plugin.SummaryItem{
		{Key: "Created", Value: "1"},
		{Key: "Updated", Value: "0"},
		{Key: "Failed", Value: "0"},
	}, last.Summary)
	assert.Len(t, stub.Records("Lead"), 2)
}

func TestStub_SchemaMismatchMakesNoBulkCall(t *testing.T) {
	stub := salesforcetest.NewServer()
	p, err := New(context.Background(), plugintest.Credentials(plugin.Params{ParamObject: "Lead"}), plugintest.Stub(stub))
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), []*entity.Entities{
		rows([]string{"LastName", "Favourite_Colour__c"}, []string{"Hopper", "blue"}),
	}, nil)
	var schemaErr *plugin.SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr))
	assert.Zero(t, stub.CallCount("/services/async/"))
}

func TestStub_QueryThenUpsertRoundTrip(t *testing.T) {
	stub := salesforcetest.NewServer()
	ctx := context.Background()

	query, err := soqlquery.New(ctx,
		plugintest.Credentials(plugin.Params{soqlquery.ParamQuery: "SELECT Id, FirstName, LastName, Company FROM Lead"}),
		plugintest.Stub(stub))
	require.NoError(t, err)
	leads, err := query.Execute(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, leads.Len())

	upsert, err := New(ctx, plugintest.Credentials(plugin.Params{ParamObject: "Lead"}), plugintest.Stub(stub))
	require.NoError(t, err)
	rec := &plugin.Recorder{}
	_, err = upsert.Execute(ctx, []*entity.Entities{leads}, rec)
	require.NoError(t, err)

	last, _ := rec.Last()
	assert.Equal(t, "1", last.Summary[1].Value)
	assert.Empty(t, last.Warnings)

	records := stub.Records("Lead")
	require.Len(t, records, 1)
	assert.Equal(t, "Grace", records[0]["FirstName"])
	assert.Equal(t, "Hopper", records[0]["LastName"])
	assert.Equal(t, "Navy", records[0]["Company"])
}
