// Package endpoint defines the contracts connectors implement so the plugin
// layer, the gateway and the worker can drive them without knowing the
// vendor behind them.
//
//	Endpoint        - base contract (ID, ValidateConfig, Capabilities, Descriptor)
//	SourceEndpoint  - read data (ListDatasets, GetSchema, Read)
//	SinkEndpoint    - write data (WriteRaw)
//	ActionEndpoint  - control-plane actions (ListActions, ExecuteAction)
package endpoint

import "context"

// Endpoint is the base contract every connector implements.
type Endpoint interface {
	// ID returns the template identifier (e.g. "http.salesforce").
	ID() string

	// ValidateConfig tests configuration validity and connectivity.
	ValidateConfig(ctx context.Context, config map[string]any) (*ValidationResult, error)

	GetCapabilities() *Capabilities
	GetDescriptor() *Descriptor

	// Close releases any resources held by the endpoint.
	Close() error
}

// SourceEndpoint can read data from an external system.
type SourceEndpoint interface {
	Endpoint

	// ListDatasets returns the objects that can be read.
	ListDatasets(ctx context.Context) ([]*Dataset, error)

	// GetSchema returns the field list of one dataset.
	GetSchema(ctx context.Context, datasetID string) (*Schema, error)

	// Read streams records. The returned Iterator must be closed.
	Read(ctx context.Context, req *ReadRequest) (Iterator[Record], error)
}

// SinkEndpoint can write data to an external system.
type SinkEndpoint interface {
	Endpoint

	WriteRaw(ctx context.Context, req *WriteRequest) (*WriteResult, error)
}

// ActionEndpoint can execute control-plane actions.
type ActionEndpoint interface {
	Endpoint

	ListActions(ctx context.Context) ([]*ActionDescriptor, error)
	GetActionSchema(ctx context.Context, actionID string) (*ActionSchema, error)
	ExecuteAction(ctx context.Context, req *ActionRequest) (*ActionResult, error)
}

// DataEndpoint supports both source and sink operations.
type DataEndpoint interface {
	SourceEndpoint
	SinkEndpoint
}
