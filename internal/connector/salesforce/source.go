package salesforce

import (
	"context"
	"fmt"
	"strings"

	connhttp "github.com/nucleus/ucl-salesforce/internal/connector/http"
	"github.com/nucleus/ucl-salesforce/internal/endpoint"
)

// ListDatasets returns the queryable objects of the org.
func (s *Salesforce) ListDatasets(ctx context.Context) ([]*endpoint.Dataset, error) {
	objects, err := s.DescribeGlobal(ctx)
	if err != nil {
		return nil, err
	}
	datasets := make([]*endpoint.Dataset, 0, len(objects))
	for _, o := range objects {
		if !o.Queryable {
			continue
		}
		kind := "object"
		if o.Custom {
			kind = "custom_object"
		}
		datasets = append(datasets, &endpoint.Dataset{
			ID:          o.Name,
			Name:        o.Label,
			Kind:        kind,
			Queryable:   o.Queryable,
			Writable:    o.Createable || o.Updateable,
			PrimaryKeys: []string{"Id"},
		})
	}
	return datasets, nil
}

// GetSchema returns the describe fields of an object.
func (s *Salesforce) GetSchema(ctx context.Context, datasetID string) (*endpoint.Schema, error) {
	desc, err := s.Describe(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	fields := make([]*endpoint.FieldDefinition, 0, len(desc.Fields))
	for i, f := range desc.Fields {
		fields = append(fields, &endpoint.FieldDefinition{
			Name:       f.Name,
			Label:      f.Label,
			DataType:   f.Type,
			Nullable:   f.Nillable,
			Length:     f.Length,
			Precision:  f.Precision,
			Scale:      f.Scale,
			Position:   i + 1,
			Updatable:  f.Updateable,
			ExternalID: f.ExternalID,
		})
	}
	return &endpoint.Schema{Fields: fields}, nil
}

// Read streams the records of an object. Without an explicit query every
// described field is selected.
func (s *Salesforce) Read(ctx context.Context, req *endpoint.ReadRequest) (endpoint.Iterator[endpoint.Record], error) {
	soql := req.Query
	if soql == "" {
		desc, err := s.Describe(ctx, req.DatasetID)
		if err != nil {
			return nil, err
		}
		if len(desc.Fields) == 0 {
			return nil, fmt.Errorf("object %s has no fields", req.DatasetID)
		}
		soql = fmt.Sprintf("SELECT %s FROM %s", strings.Join(desc.FieldNames(), ", "), desc.Name)
		if req.Limit > 0 {
			soql += fmt.Sprintf(" LIMIT %d", req.Limit)
		}
	}
	it, err := s.Query(ctx, soql)
	if err != nil {
		return nil, err
	}
	return &recordIterator{inner: it, limit: req.Limit}, nil
}

// recordIterator adapts the SObject page iterator to endpoint records.
type recordIterator struct {
	inner *connhttp.PaginatedIterator[SObject]
	limit int64
	seen  int64
}

func (it *recordIterator) Next() bool {
	if it.limit > 0 && it.seen >= it.limit {
		return false
	}
	if !it.inner.Next() {
		return false
	}
	it.seen++
	return true
}

func (it *recordIterator) Value() endpoint.Record {
	rec := it.inner.Value()
	return rec.Map()
}

func (it *recordIterator) Err() error {
	return classify("query", it.inner.Err())
}

func (it *recordIterator) Close() error {
	return it.inner.Close()
}
