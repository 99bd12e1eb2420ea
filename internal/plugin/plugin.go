// Package plugin is the host contract between the workflow engine and the
// Salesforce plugins: construction from loose parameters, execution over
// entity batches, progress reporting and dataset output.
package plugin

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/entity"
)

// Plugin is one configured workflow operator.
type Plugin interface {
	// ID returns the plugin identifier, e.g. "salesforce.soql_query".
	ID() string

	// Execute runs the plugin over the input batches. Progress and the
	// final summary go to reporter. The returned entities may be nil when
	// the plugin produces no output.
	Execute(ctx context.Context, inputs []*entity.Entities, reporter Reporter) (*entity.Entities, error)
}

// DatasetWriter stores raw bytes under a dataset identifier.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, datasetID string, data []byte) error
}

// AuditSink receives the results of every submitted upsert batch.
type AuditSink interface {
	Record(ctx context.Context, object string, results []salesforce.BulkResult) error
}

// Dialer opens an authenticated Salesforce session.
type Dialer func(ctx context.Context, cfg *salesforce.Config) (salesforce.Client, error)

// DialSalesforce logs in with the SOAP partner API.
func DialSalesforce(ctx context.Context, cfg *salesforce.Config) (salesforce.Client, error) {
	client, err := salesforce.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Options carries the collaborators a plugin is built with.
type Options struct {
	Dialer   Dialer
	Datasets DatasetWriter
	Audit    AuditSink
	Logger   zerolog.Logger
	Now      func() time.Time

	// Connection adjusts the connector configuration after parameters are
	// parsed, e.g. to set a transport or timeouts from the process config.
	Connection func(*salesforce.Config)
}

// Option configures Options.
type Option func(*Options)

// WithDialer replaces the Salesforce dialer.
func WithDialer(d Dialer) Option { return func(o *Options) { o.Dialer = d } }

// WithDatasetWriter sets the dataset sink.
func WithDatasetWriter(w DatasetWriter) Option { return func(o *Options) { o.Datasets = w } }

// WithAudit sets the sink upsert results are recorded to.
func WithAudit(sink AuditSink) Option { return func(o *Options) { o.Audit = sink } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(o *Options) { o.Now = now } }

// WithConnection registers a connector configuration hook.
func WithConnection(fn func(*salesforce.Config)) Option {
	return func(o *Options) { o.Connection = fn }
}

// Apply resolves opts over the defaults.
func Apply(opts ...Option) Options {
	o := Options{
		Dialer: DialSalesforce,
		Logger: zerolog.Nop(),
		Now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connect parses the connection parameters and dials Salesforce.
func (o Options) Connect(ctx context.Context, params Params) (salesforce.Client, error) {
	cfg, err := params.Connection()
	if err != nil {
		return nil, err
	}
	if o.Connection != nil {
		o.Connection(cfg)
	}
	cfg.Logger = o.Logger
	return o.Dialer(ctx, cfg)
}
