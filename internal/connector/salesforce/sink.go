package salesforce

import (
	"context"
	"fmt"

	"github.com/nucleus/ucl-salesforce/internal/endpoint"
)

// WriteRaw upserts records into the object named by DatasetID.
func (s *Salesforce) WriteRaw(ctx context.Context, req *endpoint.WriteRequest) (*endpoint.WriteResult, error) {
	if req.Mode != "" && req.Mode != "upsert" {
		return nil, fmt.Errorf("unsupported write mode %q", req.Mode)
	}
	records := make([]map[string]any, 0, len(req.Records))
	for _, r := range req.Records {
		records = append(records, r)
	}
	results, err := s.BulkUpsert(ctx, req.DatasetID, records, req.ExternalIDField)
	if err != nil {
		return nil, err
	}

	out := &endpoint.WriteResult{Details: make([]endpoint.Record, 0, len(results))}
	for _, r := range results {
		if r.Success {
			out.RowsWritten++
		} else {
			out.RowsFailed++
		}
		out.Details = append(out.Details, bulkResultRecord(r))
	}
	return out, nil
}

func bulkResultRecord(r BulkResult) endpoint.Record {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return endpoint.Record{
		"id":      r.ID,
		"success": r.Success,
		"created": r.Created,
		"errors":  msgs,
	}
}
