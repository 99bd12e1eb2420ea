// Package contactexport implements the contact export plugin, which dumps
// the id and name of every Contact into a JSON dataset.
package contactexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
)

// ID identifies the plugin.
const ID = "salesforce.contact_export"

// Query is the query the export runs.
const Query = "SELECT Id, Name FROM Contact"

// Descriptor documents the plugin.
var Descriptor = plugin.Descriptor{
	ID:          ID,
	Label:       "Salesforce",
	Description: "Exports the contacts of a Salesforce account into a JSON dataset.",
	Documentation: "Runs `" + Query + "` and writes the full query result, records included, " +
		"to the configured dataset.",
	Parameters: append(plugin.ConnectionParameters(),
		plugin.ParameterDescriptor{Name: plugin.ParamDataset, Label: "Dataset", Description: "Dataset name to save the response from Salesforce.", Type: plugin.TypeDataset},
	),
}

func init() {
	plugin.Register(Descriptor, func(ctx context.Context, params plugin.Params, opts ...plugin.Option) (plugin.Plugin, error) {
		return New(ctx, params, opts...)
	})
}

// Plugin exports contacts to a dataset.
type Plugin struct {
	dataset string
	client  salesforce.Client
	writer  plugin.DatasetWriter
	logger  zerolog.Logger
}

// New validates params and logs in.
func New(ctx context.Context, params plugin.Params, opts ...plugin.Option) (*Plugin, error) {
	if _, err := params.Connection(); err != nil {
		return nil, err
	}
	dataset, err := params.Required(plugin.ParamDataset, "Dataset is required.")
	if err != nil {
		return nil, err
	}
	o := plugin.Apply(opts...)
	if o.Datasets == nil {
		return nil, &plugin.ConfigurationError{Parameter: plugin.ParamDataset, Message: "no dataset writer configured"}
	}
	client, err := o.Connect(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Plugin{
		dataset: dataset,
		client:  client,
		writer:  o.Datasets,
		logger:  o.Logger.With().Str("plugin", ID).Logger(),
	}, nil
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return ID }

// Execute queries the contacts and writes the result. It produces no
// entities.
func (p *Plugin) Execute(ctx context.Context, _ []*entity.Entities, reporter plugin.Reporter) (*entity.Entities, error) {
	if reporter == nil {
		reporter = plugin.NopReporter{}
	}
	result, err := p.client.QueryAll(ctx, Query)
	if err != nil {
		var remote *salesforce.RemoteRequestError
		if errors.As(err, &remote) {
			p.logger.Error().Err(err).Msg("contact query rejected")
			reporter.Update(plugin.ExecutionReport{Operation: "export", OperationDesc: "contacts exported", Warnings: []string{remote.Error()}})
			return nil, nil
		}
		return nil, fmt.Errorf("query contacts: %w", err)
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode contacts: %w", err)
	}
	if err := p.writer.WriteDataset(ctx, p.dataset, payload); err != nil {
		return nil, fmt.Errorf("write dataset %s: %w", p.dataset, err)
	}
	reporter.Update(plugin.ExecutionReport{
		EntityCount:   len(result.Records),
		Operation:     "export",
		OperationDesc: "contacts exported",
	})
	p.logger.Info().Int("contacts", len(result.Records)).Str("dataset", p.dataset).Msg("contacts exported")
	return nil, nil
}
