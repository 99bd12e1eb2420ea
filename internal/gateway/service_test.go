package gateway

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce/salesforcetest"
	"github.com/nucleus/ucl-salesforce/internal/dataset"
	"github.com/nucleus/ucl-salesforce/internal/endpoint"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/plugin/plugintest"
	_ "github.com/nucleus/ucl-salesforce/pkg/connector"
)

type harness struct {
	client   *PluginServiceClient
	stub     *salesforcetest.Server
	datasets *dataset.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stub := salesforcetest.NewServer()
	datasets := dataset.NewMemory()

	registry := endpoint.NewRegistry()
	registry.Register("http.salesforce", func(config map[string]any) (endpoint.Endpoint, error) {
		cfg := salesforce.ConfigFromMap(config)
		stubCfg := stub.Config()
		cfg.LoginURL = stubCfg.LoginURL
		cfg.Transport = stubCfg.Transport
		cfg.RateLimit = stubCfg.RateLimit
		return salesforce.New(cfg)
	})
	registry.RegisterActions("http.salesforce", endpoint.DefaultRegistry().Actions("http.salesforce"))

	svc := NewService(registry, zerolog.Nop(), plugintest.Stub(stub), plugin.WithDatasetWriter(datasets))

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterPluginServiceServer(server, svc)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{client: NewPluginServiceClient(conn), stub: stub, datasets: datasets}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func credentials(extra map[string]any) map[string]any {
	m := map[string]any{"username": "integration@example.com", "password": "secret", "security_token": "token"}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestListPlugins(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.ListPlugins(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	var ids []string
	for _, v := range resp.GetFields()["plugins"].GetListValue().GetValues() {
		ids = append(ids, v.GetStructValue().GetFields()["id"].GetStringValue())
	}
	assert.Subset(t, ids, []string{"salesforce.contact_export", "salesforce.soql_query", "salesforce.sobject_upsert"})
}

func TestExecute_QueryThenUpsert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.client.Execute(ctx, mustStruct(t, map[string]any{
		"pluginId": "salesforce.soql_query",
		"parameters": credentials(map[string]any{
			"soql_query": "SELECT Id, FirstName, LastName, Company FROM Lead",
			"dataset":    "leads",
		}),
	}))
	require.NoError(t, err)

	output := resp.GetFields()["output"]
	rows := output.GetStructValue().GetFields()["entities"].GetListValue().GetValues()
	require.Len(t, rows, 1)
	_, ok := h.datasets.Latest("leads")
	assert.True(t, ok)

	resp, err = h.client.Execute(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"pluginId":   structpb.NewStringValue("salesforce.sobject_upsert"),
		"parameters": structpb.NewStructValue(mustStruct(t, credentials(map[string]any{"salesforce_object": "Lead"}))),
		"inputs":     structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{output}}),
	}})
	require.NoError(t, err)

	reports := resp.GetFields()["reports"].GetListValue().GetValues()
	require.NotEmpty(t, reports)
	final := reports[len(reports)-1].GetStructValue().GetFields()
	assert.Equal(t, float64(1), final["entityCount"].GetNumberValue())
	summary := final["summary"].GetListValue().GetValues()
	require.Len(t, summary, 3)
	assert.Equal(t, "Updated", summary[1].GetStructValue().GetFields()["key"].GetStringValue())
	assert.Equal(t, "1", summary[1].GetStructValue().GetFields()["value"].GetStringValue())
}

func TestExecute_ErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  map[string]any
		code codes.Code
	}{
		{"no plugin id", map[string]any{}, codes.InvalidArgument},
		{"unknown plugin", map[string]any{"pluginId": "salesforce.nope"}, codes.NotFound},
		{"missing object", map[string]any{"pluginId": "salesforce.sobject_upsert", "parameters": credentials(nil)}, codes.InvalidArgument},
		{"bad soql", map[string]any{"pluginId": "salesforce.soql_query", "parameters": credentials(map[string]any{"soql_query": "SELECT FROM"})}, codes.InvalidArgument},
		{"rejected login", map[string]any{"pluginId": "salesforce.soql_query", "parameters": credentials(map[string]any{"soql_query": "SELECT Id FROM Lead", "password": "wrong"})}, codes.Unauthenticated},
		{"bad input", map[string]any{
			"pluginId":   "salesforce.sobject_upsert",
			"parameters": credentials(map[string]any{"salesforce_object": "Lead"}),
			"inputs":     []any{map[string]any{"entities": []any{}}},
		}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.client.Execute(ctx, mustStruct(t, tc.req))
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err), err.Error())
		})
	}
}

func TestExecute_SchemaMismatch(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Execute(context.Background(), mustStruct(t, map[string]any{
		"pluginId":   "salesforce.sobject_upsert",
		"parameters": credentials(map[string]any{"salesforce_object": "Lead"}),
		"inputs": []any{map[string]any{
			"schema":   map[string]any{"typeUri": "urn:x", "paths": []any{map[string]any{"path": "Shoe_Size__c"}}},
			"entities": []any{map[string]any{"uri": "urn:1", "values": []any{[]any{"9"}}}},
		}},
	}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Zero(t, h.stub.CallCount("/services/async/"))
}

func TestActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.client.ListActions(ctx, mustStruct(t, map[string]any{"endpointTemplateId": "http.salesforce"}))
	require.NoError(t, err)
	assert.Len(t, resp.GetFields()["actions"].GetListValue().GetValues(), 3)

	_, err = h.client.ListActions(ctx, mustStruct(t, map[string]any{"endpointTemplateId": "http.nope"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err = h.client.ExecuteAction(ctx, mustStruct(t, map[string]any{
		"endpointTemplateId": "http.salesforce",
		"config":             map[string]any{"username": "integration@example.com", "password": "secret", "securityToken": "token"},
		"actionName":         "salesforce.describe",
		"parameters":         map[string]any{"object": "Lead"},
	}))
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["success"].GetBoolValue())
}

func TestRedact(t *testing.T) {
	config := map[string]any{"username": "u", "password": "p", "securityToken": "t"}
	out := redact(config, []string{"password", "securityToken", "missing"})
	assert.Equal(t, map[string]any{"username": "u", "password": "***", "securityToken": "***"}, out)
	assert.Equal(t, "p", config["password"])
}
