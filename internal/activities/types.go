package activities

import (
	"github.com/nucleus/ucl-salesforce/internal/entity"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
)

// Export formats of query results.
const (
	FormatParquet = "parquet"
	FormatJSON    = "json"
)

// QueryRequest is the input of SoqlQuery.
type QueryRequest struct {
	Parameters map[string]any `json:"parameters"`

	// ExportDataset, when set, receives the flattened entities.
	ExportDataset string `json:"exportDataset,omitempty"`
	ExportFormat  string `json:"exportFormat,omitempty"`
}

// QueryResult is the output of SoqlQuery.
type QueryResult struct {
	Entities *entity.Entities         `json:"entities"`
	RowCount int                      `json:"rowCount"`
	Reports  []plugin.ExecutionReport `json:"reports,omitempty"`
}

// UpsertRequest is the input of SObjectUpsert.
type UpsertRequest struct {
	Parameters map[string]any     `json:"parameters"`
	Inputs     []*entity.Entities `json:"inputs"`
}

// UpsertResult is the output of SObjectUpsert.
type UpsertResult struct {
	Processed int                      `json:"processed"`
	Summary   []plugin.SummaryItem     `json:"summary,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Reports   []plugin.ExecutionReport `json:"reports,omitempty"`
}

// PluginRequest runs any registered plugin.
type PluginRequest struct {
	PluginID   string             `json:"pluginId"`
	Parameters map[string]any     `json:"parameters"`
	Inputs     []*entity.Entities `json:"inputs,omitempty"`
}

// PluginResult is the output of RunPlugin.
type PluginResult struct {
	Output  *entity.Entities         `json:"output,omitempty"`
	Reports []plugin.ExecutionReport `json:"reports,omitempty"`
}
