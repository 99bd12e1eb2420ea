// Package activities implements Temporal activities running the Salesforce
// plugins.
package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/dataset"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/plugin/sobjectupsert"
	"github.com/nucleus/ucl-salesforce/internal/plugin/soqlquery"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

// Activities holds the Salesforce activities.
type Activities struct {
	datasets dataset.Writer
	opts     []plugin.Option
}

// NewActivities creates activities writing exports to datasets and
// building plugins with opts.
func NewActivities(datasets dataset.Writer, opts ...plugin.Option) *Activities {
	if datasets != nil {
		opts = append([]plugin.Option{plugin.WithDatasetWriter(datasets)}, opts...)
	}
	return &Activities{datasets: datasets, opts: opts}
}

// SoqlQuery runs a SOQL query and returns the flattened records.
func (a *Activities) SoqlQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("running soql query", "exportDataset", req.ExportDataset)

	p, err := soqlquery.New(ctx, req.Parameters, a.opts...)
	if err != nil {
		return nil, classify(err)
	}
	recorder := &plugin.Recorder{}
	out, err := p.Execute(ctx, nil, heartbeat(ctx, recorder))
	if err != nil {
		return nil, classify(err)
	}

	if req.ExportDataset != "" {
		if err := a.export(ctx, req.ExportDataset, req.ExportFormat, out); err != nil {
			return nil, err
		}
	}

	logger.Info("soql query complete", "rows", out.Len())
	return &QueryResult{Entities: out, RowCount: out.Len(), Reports: recorder.Reports()}, nil
}

// SObjectUpsert upserts the input entities and returns the summary.
func (a *Activities) SObjectUpsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("upserting records", "batches", len(req.Inputs))

	p, err := sobjectupsert.New(ctx, req.Parameters, a.opts...)
	if err != nil {
		return nil, classify(err)
	}
	recorder := &plugin.Recorder{}
	if _, err := p.Execute(ctx, req.Inputs, heartbeat(ctx, recorder)); err != nil {
		return nil, classify(err)
	}

	res := &UpsertResult{Reports: recorder.Reports()}
	if last, ok := recorder.Last(); ok {
		res.Processed = last.EntityCount
		res.Summary = last.Summary
		res.Warnings = last.Warnings
	}
	logger.Info("upsert complete", "object", p.Object(), "processed", res.Processed)
	return res, nil
}

// RunPlugin runs any registered plugin by id.
func (a *Activities) RunPlugin(ctx context.Context, req PluginRequest) (*PluginResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("running plugin", "pluginId", req.PluginID)

	p, err := plugin.Create(ctx, req.PluginID, req.Parameters, a.opts...)
	if err != nil {
		return nil, classify(err)
	}
	recorder := &plugin.Recorder{}
	out, err := p.Execute(ctx, req.Inputs, heartbeat(ctx, recorder))
	if err != nil {
		return nil, classify(err)
	}
	return &PluginResult{Output: out, Reports: recorder.Reports()}, nil
}

func (a *Activities) export(ctx context.Context, datasetID, format string, out *entity.Entities) error {
	if a.datasets == nil {
		return temporal.NewNonRetryableApplicationError("no dataset writer configured", "ConfigurationError", nil)
	}
	var (
		payload []byte
		err     error
	)
	switch format {
	case "", FormatParquet:
		payload, err = dataset.EncodeParquet(out)
	case FormatJSON:
		payload, err = json.Marshal(out)
	default:
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("unknown export format %q", format), "ConfigurationError", nil)
	}
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := a.datasets.WriteDataset(ctx, datasetID, payload); err != nil {
		var dsErr *dataset.Error
		if errors.As(err, &dsErr) && !dsErr.Retryable {
			return temporal.NewNonRetryableApplicationError(err.Error(), dsErr.Code, err)
		}
		return fmt.Errorf("write export %s: %w", datasetID, err)
	}
	return nil
}

// heartbeat forwards every report to rec and to the activity heartbeat.
func heartbeat(ctx context.Context, rec *plugin.Recorder) plugin.Reporter {
	return plugin.Tee(rec, plugin.ReporterFunc(func(r plugin.ExecutionReport) {
		activity.RecordHeartbeat(ctx, r.EntityCount)
	}))
}

// classify marks errors that a retry cannot fix as non-retryable.
func classify(err error) error {
	var (
		cfgErr    *plugin.ConfigurationError
		valErr    *salesforce.ValidationError
		parseErr  *soql.ParseError
		authErr   *salesforce.AuthenticationError
		schemaErr *plugin.SchemaMismatchError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "ConfigurationError", err)
	case errors.As(err, &parseErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "ParseError", err)
	case errors.As(err, &authErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "AuthenticationError", err)
	case errors.As(err, &schemaErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "SchemaMismatchError", err)
	}
	return err
}
