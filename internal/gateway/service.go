// Package gateway exposes the plugins and the Salesforce endpoint over
// gRPC.
package gateway

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nucleus/ucl-salesforce/internal/auth"
	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/endpoint"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/logging"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

// Service implements PluginServiceServer.
type Service struct {
	endpoints *endpoint.Registry
	opts      []plugin.Option
	logger    zerolog.Logger
}

var _ PluginServiceServer = (*Service)(nil)

// NewService returns a service creating endpoints from registry and
// plugins with opts.
func NewService(registry *endpoint.Registry, logger zerolog.Logger, opts ...plugin.Option) *Service {
	if registry == nil {
		registry = endpoint.DefaultRegistry()
	}
	return &Service{
		endpoints: registry,
		opts:      append([]plugin.Option{plugin.WithLogger(logger)}, opts...),
		logger:    logger,
	}
}

// ListPlugins returns {"plugins": [descriptor...]}.
func (s *Service) ListPlugins(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	v, err := toValue(plugin.Descriptors())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode descriptors: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"plugins": v}}, nil
}

// Execute runs one plugin. Request:
//
//	{"pluginId": "...", "parameters": {...}, "inputs": [entities...]}
//
// Response: {"output": entities|null, "reports": [report...]}.
func (s *Service) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pluginID := req.GetFields()["pluginId"].GetStringValue()
	if pluginID == "" {
		return nil, status.Error(codes.InvalidArgument, "pluginId is required")
	}
	if _, ok := plugin.Lookup(pluginID); !ok {
		return nil, status.Errorf(codes.NotFound, "unknown plugin: %s", pluginID)
	}

	params := plugin.Params{}
	if p := req.GetFields()["parameters"].GetStructValue(); p != nil {
		params = p.AsMap()
	}
	var inputs []*entity.Entities
	for i, v := range req.GetFields()["inputs"].GetListValue().GetValues() {
		e, err := entitiesFromValue(v)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "inputs[%d]: %v", i, err)
		}
		inputs = append(inputs, e)
	}

	p, err := plugin.Create(ctx, pluginID, params, s.opts...)
	if err != nil {
		return nil, toStatus(err)
	}
	recorder := &plugin.Recorder{}
	logger := s.requestLogger(ctx).With().
		Str("plugin", pluginID).
		Str("caller", auth.FromContext(ctx).Subject).
		Logger()
	reporter := plugin.Tee(recorder, plugin.LogReporter{Logger: logger})
	out, err := p.Execute(ctx, inputs, reporter)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := toStruct(struct {
		Output  *entity.Entities         `json:"output"`
		Reports []plugin.ExecutionReport `json:"reports"`
	}{Output: out, Reports: recorder.Reports()})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return resp, nil
}

// requestLogger prefers the logger the server attached to ctx.
func (s *Service) requestLogger(ctx context.Context) zerolog.Logger {
	if l := logging.From(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return s.logger
}

// ListActions returns {"actions": [...]} of an endpoint template.
func (s *Service) ListActions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	templateID := req.GetFields()["endpointTemplateId"].GetStringValue()
	if templateID == "" {
		return nil, status.Error(codes.InvalidArgument, "endpointTemplateId is required")
	}
	actions := s.endpoints.Actions(templateID)
	if actions == nil {
		if _, ok := s.endpoints.Get(templateID); !ok {
			return nil, status.Errorf(codes.NotFound, "unknown endpoint template: %s", templateID)
		}
	}
	v, err := toValue(actions)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode actions: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"actions": v}}, nil
}

// ExecuteAction runs an endpoint action. Request:
//
//	{"endpointTemplateId": "...", "config": {...}, "actionName": "...", "parameters": {...}, "dryRun": false}
func (s *Service) ExecuteAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	templateID := fields["endpointTemplateId"].GetStringValue()
	actionName := fields["actionName"].GetStringValue()
	if templateID == "" || actionName == "" {
		return nil, status.Error(codes.InvalidArgument, "endpointTemplateId and actionName are required")
	}
	config := map[string]any{}
	if c := fields["config"].GetStructValue(); c != nil {
		config = c.AsMap()
	}
	params := map[string]any{}
	if p := fields["parameters"].GetStructValue(); p != nil {
		params = p.AsMap()
	}

	ep, err := s.endpoints.Create(templateID, config)
	if err != nil {
		return nil, toStatus(err)
	}
	defer ep.Close()

	s.logger.Debug().
		Str("template", templateID).
		Str("action", actionName).
		Interface("config", redact(config, ep.GetDescriptor().Sensitive())).
		Msg("executing endpoint action")

	actionEp, ok := ep.(endpoint.ActionEndpoint)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "endpoint does not support actions")
	}
	res, err := actionEp.ExecuteAction(ctx, &endpoint.ActionRequest{
		ActionID:   actionName,
		Parameters: params,
		DryRun:     fields["dryRun"].GetBoolValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// toStatus maps domain errors to gRPC codes.
func toStatus(err error) error {
	var (
		cfgErr    *plugin.ConfigurationError
		valErr    *salesforce.ValidationError
		parseErr  *soql.ParseError
		authErr   *salesforce.AuthenticationError
		schemaErr *plugin.SchemaMismatchError
		remoteErr *salesforce.RemoteRequestError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &parseErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &authErr):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.As(err, &schemaErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &remoteErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
