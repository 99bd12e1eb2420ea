package salesforce

import (
	"context"
	"fmt"

	"github.com/nucleus/ucl-salesforce/internal/endpoint"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

var salesforceActions = []*endpoint.ActionDescriptor{
	{
		ID:           "salesforce.soql_query",
		Name:         "Run SOQL Query",
		Description:  "Run a SOQL query and return every matching record",
		Category:     "query",
		RequiresAuth: true,
	},
	{
		ID:           "salesforce.describe",
		Name:         "Describe Object",
		Description:  "Return the field metadata of an object",
		Category:     "describe",
		RequiresAuth: true,
	},
	{
		ID:           "salesforce.sobject_upsert",
		Name:         "Upsert Records",
		Description:  "Upsert records into an object through the Bulk API",
		Category:     "execute",
		RequiresAuth: true,
	},
}

var actionSchemas = map[string]*endpoint.ActionSchema{
	"salesforce.soql_query": {
		ActionID: "salesforce.soql_query",
		InputFields: []*endpoint.ActionField{
			{Name: "query", Label: "SOQL Query", DataType: "string", Required: true, Description: "e.g. SELECT Id, Name FROM Account"},
			{Name: "parseSoql", Label: "Validate SOQL", DataType: "boolean", Default: true, Description: "Check the query syntax before sending it"},
		},
		OutputFields: []*endpoint.ActionField{
			{Name: "totalSize", Label: "Total Size", DataType: "integer"},
			{Name: "records", Label: "Records", DataType: "array"},
		},
	},
	"salesforce.describe": {
		ActionID: "salesforce.describe",
		InputFields: []*endpoint.ActionField{
			{Name: "object", Label: "Object API Name", DataType: "string", Required: true, Description: "e.g. Lead"},
		},
		OutputFields: []*endpoint.ActionField{
			{Name: "fields", Label: "Fields", DataType: "array"},
		},
	},
	"salesforce.sobject_upsert": {
		ActionID: "salesforce.sobject_upsert",
		InputFields: []*endpoint.ActionField{
			{Name: "object", Label: "Object API Name", DataType: "string", Required: true},
			{Name: "records", Label: "Records", DataType: "array", Required: true},
			{Name: "externalIdField", Label: "External ID Field", DataType: "string", Default: "Id"},
		},
		OutputFields: []*endpoint.ActionField{
			{Name: "results", Label: "Results", DataType: "array"},
			{Name: "failed", Label: "Failed", DataType: "integer"},
		},
	},
}

func init() {
	endpoint.RegisterActions("http.salesforce", salesforceActions)
}

// ListActions returns available Salesforce actions.
func (s *Salesforce) ListActions(ctx context.Context) ([]*endpoint.ActionDescriptor, error) {
	return salesforceActions, nil
}

// GetActionSchema returns the schema for a specific action.
func (s *Salesforce) GetActionSchema(ctx context.Context, actionID string) (*endpoint.ActionSchema, error) {
	schema, ok := actionSchemas[actionID]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", actionID)
	}
	return schema, nil
}

// ExecuteAction executes a Salesforce action. Remote rejections come back
// as unsuccessful results rather than errors.
func (s *Salesforce) ExecuteAction(ctx context.Context, req *endpoint.ActionRequest) (*endpoint.ActionResult, error) {
	if _, ok := actionSchemas[req.ActionID]; !ok {
		return &endpoint.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Unknown action: %s", req.ActionID),
			Errors:  []endpoint.ActionError{{Code: "UNKNOWN_ACTION", Message: req.ActionID}},
		}, nil
	}
	if missing := missingParameters(req); len(missing) > 0 {
		errs := make([]endpoint.ActionError, 0, len(missing))
		for _, m := range missing {
			errs = append(errs, endpoint.ActionError{Code: "REQUIRED", Field: m, Message: m + " is required"})
		}
		return &endpoint.ActionResult{Success: false, Message: "Missing required parameters", Errors: errs}, nil
	}

	if req.DryRun {
		return &endpoint.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Dry run - action '%s' validated but not executed", req.ActionID),
		}, nil
	}

	var (
		result *endpoint.ActionResult
		err    error
	)
	switch req.ActionID {
	case "salesforce.soql_query":
		result, err = s.runQuery(ctx, req.Parameters)
	case "salesforce.describe":
		result, err = s.runDescribe(ctx, req.Parameters)
	case "salesforce.sobject_upsert":
		result, err = s.runUpsert(ctx, req.Parameters)
	}
	if err != nil && IsRemoteRequest(err) {
		return &endpoint.ActionResult{
			Success: false,
			Message: err.Error(),
			Errors:  []endpoint.ActionError{{Code: "REMOTE_REQUEST", Message: err.Error()}},
		}, nil
	}
	return result, err
}

func missingParameters(req *endpoint.ActionRequest) []string {
	var missing []string
	for _, f := range actionSchemas[req.ActionID].InputFields {
		if !f.Required {
			continue
		}
		v, ok := req.Parameters[f.Name]
		if !ok || v == nil || v == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func (s *Salesforce) runQuery(ctx context.Context, params map[string]any) (*endpoint.ActionResult, error) {
	query := getString(params, "query", "")
	if getBool(params, "parseSoql", true) {
		if err := soql.Validate(query); err != nil {
			return &endpoint.ActionResult{
				Success: false,
				Message: err.Error(),
				Errors:  []endpoint.ActionError{{Code: "PARSE_ERROR", Field: "query", Message: err.Error()}},
			}, nil
		}
	}
	res, err := s.QueryAll(ctx, query)
	if err != nil {
		return nil, err
	}
	records := make([]any, 0, len(res.Records))
	for i := range res.Records {
		records = append(records, res.Records[i].Map())
	}
	return &endpoint.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%d records", len(records)),
		Data: map[string]any{
			"totalSize": res.TotalSize,
			"records":   records,
		},
	}, nil
}

func (s *Salesforce) runDescribe(ctx context.Context, params map[string]any) (*endpoint.ActionResult, error) {
	desc, err := s.Describe(ctx, getString(params, "object", ""))
	if err != nil {
		return nil, err
	}
	fields := make([]any, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		fields = append(fields, map[string]any{
			"name":     f.Name,
			"label":    f.Label,
			"type":     f.Type,
			"nillable": f.Nillable,
		})
	}
	return &endpoint.ActionResult{
		Success: true,
		Data:    map[string]any{"name": desc.Name, "fields": fields},
	}, nil
}

func (s *Salesforce) runUpsert(ctx context.Context, params map[string]any) (*endpoint.ActionResult, error) {
	var records []map[string]any
	switch v := params["records"].(type) {
	case []map[string]any:
		records = v
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return &endpoint.ActionResult{
					Success: false,
					Message: fmt.Sprintf("records[%d] is not an object", i),
					Errors:  []endpoint.ActionError{{Code: "INVALID", Field: "records", Message: "records must be objects"}},
				}, nil
			}
			records = append(records, m)
		}
	}
	results, err := s.BulkUpsert(ctx, getString(params, "object", ""), records, getString(params, "externalIdField", "Id"))
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
		out = append(out, bulkResultRecord(r))
	}
	return &endpoint.ActionResult{
		Success: failed == 0,
		Message: fmt.Sprintf("%d records upserted, %d failed", len(results)-failed, failed),
		Data:    map[string]any{"results": out, "failed": failed},
	}, nil
}
