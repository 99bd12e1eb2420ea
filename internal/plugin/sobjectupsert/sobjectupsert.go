// Package sobjectupsert implements the upsert plugin: input entities are
// mapped to records of one Salesforce object and submitted through the
// Bulk API.
package sobjectupsert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
)

// ID identifies the plugin.
const ID = "salesforce.sobject_upsert"

// ParamObject names the target object parameter.
const ParamObject = "salesforce_object"

// ExternalIDField is the field upserts are keyed on.
const ExternalIDField = "Id"

// Descriptor documents the plugin.
var Descriptor = plugin.Descriptor{
	ID:          ID,
	Label:       "Salesforce Create Record(s)",
	Description: "Manipulate data in your organization's Salesforce account.",
	Documentation: fmt.Sprintf("This task creates or updates records of a Salesforce object with the %s. "+
		"Every input column must be a field of the object, see the %s. "+
		"Rows with an empty id column are created, the others are updated.",
		plugin.LinkBulkAPI, plugin.LinkObjectReference),
	Parameters: append(plugin.ConnectionParameters(),
		plugin.ParameterDescriptor{
			Name:        ParamObject,
			Label:       "Object API Name",
			Description: "Salesforce Object API Name, e.g. Lead or Contact.",
			Type:        plugin.TypeString,
		},
	),
}

func init() {
	plugin.Register(Descriptor, func(ctx context.Context, params plugin.Params, opts ...plugin.Option) (plugin.Plugin, error) {
		return New(ctx, params, opts...)
	})
}

// Plugin upserts input entities into one Salesforce object.
type Plugin struct {
	object string
	client salesforce.Client
	opts   plugin.Options
	logger zerolog.Logger
}

// New validates params and logs in. The object name is checked before
// anything else.
func New(ctx context.Context, params plugin.Params, opts ...plugin.Option) (*Plugin, error) {
	object, err := params.Required(ParamObject, "Salesforce Object API Name is required.")
	if err != nil {
		return nil, err
	}
	if _, err := params.Connection(); err != nil {
		return nil, err
	}
	o := plugin.Apply(opts...)
	client, err := o.Connect(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Plugin{
		object: object,
		client: client,
		opts:   o,
		logger: o.Logger.With().Str("plugin", ID).Str("object", object).Logger(),
	}, nil
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return ID }

// Object returns the target object name.
func (p *Plugin) Object() string { return p.object }

// Execute submits every input batch and reports the summary. Record
// failures are reported as warnings; only schema mismatches and transport
// failures are returned as errors.
func (p *Plugin) Execute(ctx context.Context, inputs []*entity.Entities, reporter plugin.Reporter) (*entity.Entities, error) {
	if reporter == nil {
		reporter = plugin.NopReporter{}
	}
	var results []salesforce.BulkResult
	for _, batch := range inputs {
		if batch == nil || batch.Schema == nil {
			continue
		}
		batchResults, err := p.submit(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, batchResults...)
		reporter.Update(plugin.ExecutionReport{
			EntityCount:   len(results),
			Operation:     "write",
			OperationDesc: "records processed",
		})
	}

	summary := Summarize(results)
	report := plugin.ExecutionReport{
		EntityCount:   len(results),
		Operation:     "write",
		OperationDesc: "records processed",
		Summary:       summary.Items(),
	}
	if w := summary.Warning(); w != "" {
		report.Warnings = []string{w}
	}
	reporter.Update(report)
	p.logger.Info().
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Msg("upsert finished")
	return nil, nil
}

func (p *Plugin) submit(ctx context.Context, batch *entity.Entities) ([]salesforce.BulkResult, error) {
	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", p.object, err)
	}
	columns := batch.Schema.Columns()
	if err := p.validateColumns(ctx, columns); err != nil {
		return nil, err
	}
	records := Records(batch)
	if len(records) == 0 {
		return nil, nil
	}

	submittedAt := p.opts.Now().UnixMilli()
	results, err := p.client.BulkUpsert(ctx, p.object, records, ExternalIDField)
	if err != nil {
		var remote *salesforce.RemoteRequestError
		if !errors.As(err, &remote) {
			return nil, fmt.Errorf("upsert %s: %w", p.object, err)
		}
		p.logger.Error().Err(err).Int("records", len(records)).Msg("bulk request rejected")
		results = make([]salesforce.BulkResult, len(records))
		for i := range results {
			results[i] = salesforce.BulkResult{Errors: []salesforce.BulkError{{
				StatusCode: remote.Code,
				Message:    remote.Message,
			}}}
		}
	}
	for i := range results {
		results[i].SubmittedAt = submittedAt
	}
	p.logger.Debug().Int("records", len(records)).Msg("batch submitted")

	if p.opts.Audit != nil {
		if err := p.opts.Audit.Record(ctx, p.object, results); err != nil {
			p.logger.Warn().Err(err).Msg("audit record failed")
		}
	}
	return results, nil
}

func (p *Plugin) validateColumns(ctx context.Context, columns []string) error {
	describe, err := p.client.Describe(ctx, p.object)
	if err != nil {
		return fmt.Errorf("describe %s: %w", p.object, err)
	}
	var unknown []string
	for _, c := range columns {
		if !describe.HasField(c) {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		return &plugin.SchemaMismatchError{Object: p.object, Columns: unknown}
	}
	return nil
}

// Records maps entity rows to Salesforce records. Multi-valued cells are
// joined with a comma; an empty id column is left out so the row is
// inserted. The batch must already pass Validate.
func Records(batch *entity.Entities) []map[string]any {
	columns := batch.Schema.Columns()
	out := make([]map[string]any, 0, batch.Len())
	for _, row := range batch.Entities {
		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			value := entity.JoinCell(row.Values[i])
			if value == "" && strings.EqualFold(col, "id") {
				continue
			}
			rec[col] = value
		}
		out = append(out, rec)
	}
	return out
}

// Summary aggregates upsert results.
type Summary struct {
	Created  int
	Updated  int
	Failed   int
	Messages []string
}

// Summarize counts created, updated and failed records and collects the
// distinct error messages, sorted.
func Summarize(results []salesforce.BulkResult) Summary {
	var s Summary
	seen := map[string]struct{}{}
	for _, r := range results {
		switch {
		case r.Success && r.Created:
			s.Created++
		case r.Success:
			s.Updated++
		default:
			s.Failed++
		}
		for _, e := range r.Errors {
			msg := e.Message
			if e.StatusCode != "" {
				msg = e.StatusCode + ": " + e.Message
			}
			if _, ok := seen[msg]; !ok {
				seen[msg] = struct{}{}
				s.Messages = append(s.Messages, msg)
			}
		}
	}
	sort.Strings(s.Messages)
	return s
}

// Items renders the summary as report lines.
func (s Summary) Items() []plugin.SummaryItem {
	return []plugin.SummaryItem{
		{Key: "Created", Value: strconv.Itoa(s.Created)},
		{Key: "Updated", Value: strconv.Itoa(s.Updated)},
		{Key: "Failed", Value: strconv.Itoa(s.Failed)},
	}
}

// Warning reports the failed count and the joined error messages, or ""
// when no record failed.
func (s Summary) Warning() string {
	if s.Failed == 0 {
		return ""
	}
	if len(s.Messages) == 0 {
		return fmt.Sprintf("%d record(s) failed", s.Failed)
	}
	return fmt.Sprintf("%d record(s) failed: %s", s.Failed, strings.Join(s.Messages, "; "))
}
