// Package soqlquery implements the SOQL query plugin: it runs one query and
// flattens the returned records into entities.
package soqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

// ID identifies the plugin.
const ID = "salesforce.soql_query"

const (
	ParamQuery     = "soql_query"
	ParamParseSOQL = "parse_soql"
)

// Descriptor documents the plugin.
var Descriptor = plugin.Descriptor{
	ID:          ID,
	Label:       "SOQL query (Salesforce)",
	Description: "Executes a custom Salesforce Object Query (SOQL) to return source data.",
	Documentation: fmt.Sprintf("This task executes a %s query against a Salesforce org and returns the "+
		"records as entities. Every field of the first record becomes a column. "+
		"The security token is described in %s.", plugin.LinkSOQL, plugin.LinkSecurityToken),
	Parameters: append(plugin.ConnectionParameters(),
		plugin.ParameterDescriptor{Name: ParamQuery, Label: "SOQL Query", Description: "The query text of your SOQL query.", Type: plugin.TypeMultiline},
		plugin.ParameterDescriptor{Name: plugin.ParamDataset, Label: "Dataset", Description: "Dataset to which the query result envelope is written.", Type: plugin.TypeDataset, Advanced: true, Default: ""},
		plugin.ParameterDescriptor{Name: ParamParseSOQL, Label: "Parse SOQL Query before execution", Description: "Validates the query syntax before it is sent to Salesforce.", Type: plugin.TypeBool, Advanced: true, Default: true},
	),
}

func init() {
	plugin.Register(Descriptor, func(ctx context.Context, params plugin.Params, opts ...plugin.Option) (plugin.Plugin, error) {
		return New(ctx, params, opts...)
	})
}

// Plugin runs a SOQL query and returns the records as entities.
type Plugin struct {
	query   string
	parsed  *soql.Query
	dataset string
	client  salesforce.Client
	opts    plugin.Options
	logger  zerolog.Logger
}

// New validates params, optionally parses the query and logs in.
func New(ctx context.Context, params plugin.Params, opts ...plugin.Option) (*Plugin, error) {
	o := plugin.Apply(opts...)
	if _, err := params.Connection(); err != nil {
		return nil, err
	}
	query, err := params.Required(ParamQuery, "SOQL Query is required.")
	if err != nil {
		return nil, err
	}
	parse, err := params.Bool(ParamParseSOQL, true)
	if err != nil {
		return nil, err
	}
	dataset := params.String(plugin.ParamDataset)
	if dataset != "" && o.Datasets == nil {
		return nil, &plugin.ConfigurationError{Parameter: plugin.ParamDataset, Message: "no dataset writer configured"}
	}

	p := &Plugin{
		query:   query,
		dataset: dataset,
		opts:    o,
		logger:  o.Logger.With().Str("plugin", ID).Logger(),
	}
	if parse {
		q, err := soql.Parse(query)
		if err != nil {
			return nil, err
		}
		p.parsed = q
	}

	client, err := o.Connect(ctx, params)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return ID }

// Query returns the configured query text.
func (p *Plugin) Query() string { return p.query }

// Parsed returns the parsed query, or nil when parsing was disabled.
func (p *Plugin) Parsed() *soql.Query { return p.parsed }

// Execute runs the query. Inputs are ignored.
func (p *Plugin) Execute(ctx context.Context, _ []*entity.Entities, reporter plugin.Reporter) (*entity.Entities, error) {
	if reporter == nil {
		reporter = plugin.NopReporter{}
	}
	p.logger.Debug().Str("soql", p.query).Msg("executing query")

	result, err := p.client.QueryAll(ctx, p.query)
	if err != nil {
		var remote *salesforce.RemoteRequestError
		if errors.As(err, &remote) {
			p.logger.Error().Err(err).Str("soql", p.query).Msg("query rejected")
			reporter.Update(plugin.ExecutionReport{
				Operation:     "read",
				OperationDesc: "records read",
				Warnings:      []string{remote.Error()},
			})
			return entity.Empty(entity.DefaultTypeURI), nil
		}
		return nil, fmt.Errorf("run soql query: %w", err)
	}

	entities := Flatten(result.Records)

	if p.dataset != "" {
		payload, err := json.MarshalIndent(result.Envelope(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode query envelope: %w", err)
		}
		if err := p.opts.Datasets.WriteDataset(ctx, p.dataset, payload); err != nil {
			return nil, fmt.Errorf("write dataset %s: %w", p.dataset, err)
		}
	}

	reporter.Update(plugin.ExecutionReport{
		EntityCount:   entities.Len(),
		Operation:     "read",
		OperationDesc: "records read",
		Summary: []plugin.SummaryItem{
			{Key: "Total size", Value: strconv.Itoa(result.TotalSize)},
			{Key: "Pages", Value: strconv.Itoa(result.Pages)},
		},
	})
	p.logger.Info().Int("records", entities.Len()).Int("pages", result.Pages).Msg("query finished")
	return entities, nil
}

// Flatten projects records into entities. The first record's field order
// fixes the columns; an empty record list yields an empty schema.
func Flatten(records []salesforce.SObject) *entity.Entities {
	if len(records) == 0 {
		return entity.Empty(entity.DefaultTypeURI)
	}
	columns := records[0].Keys()
	out := &entity.Entities{
		Schema:   entity.NewSchema(entity.DefaultTypeURI, columns),
		Entities: make([]*entity.Entity, 0, len(records)),
	}
	for i := range records {
		values := make([][]string, len(columns))
		for c, col := range columns {
			values[c] = []string{records[i].String(col)}
		}
		out.Entities = append(out.Entities, &entity.Entity{URI: entity.NewURI(), Values: values})
	}
	return out
}
