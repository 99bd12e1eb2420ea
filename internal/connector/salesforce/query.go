package salesforce

import (
	"context"
	"net/http"
	"net/url"

	connhttp "github.com/nucleus/ucl-salesforce/internal/connector/http"
)

func (s *Salesforce) queryRequest(soql string) *connhttp.Request {
	return &connhttp.Request{
		Method: http.MethodGet,
		Path:   s.config.dataPath("query"),
		Query:  url.Values{"q": []string{soql}},
	}
}

// QueryAll runs soql and accumulates the records of every page.
func (s *Salesforce) QueryAll(ctx context.Context, soql string) (*QueryResult, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	paginator := connhttp.NewLinkPaginator()
	result := &QueryResult{Records: []SObject{}}
	req := s.queryRequest(soql)
	for req != nil {
		resp, err := s.Client.Do(ctx, req)
		if err != nil {
			return nil, classify("query", err)
		}
		var page QueryResult
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		if result.Pages == 0 {
			result.TotalSize = page.TotalSize
		}
		result.Pages++
		result.Records = append(result.Records, page.Records...)
		result.Done = page.Done

		req, err = paginator.NextPage(ctx, resp)
		if err != nil {
			return nil, err
		}
	}

	s.config.Logger.Debug().
		Int("total_size", result.TotalSize).
		Int("records", len(result.Records)).
		Int("pages", result.Pages).
		Msg("salesforce query completed")
	return result, nil
}

// Query streams the records of soql page by page.
func (s *Salesforce) Query(ctx context.Context, soql string) (*connhttp.PaginatedIterator[SObject], error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}
	return connhttp.NewPaginatedIterator(ctx, s.Client, s.queryRequest(soql), connhttp.NewLinkPaginator(),
		func(resp *connhttp.Response) ([]SObject, error) {
			var page QueryResult
			if err := resp.JSON(&page); err != nil {
				return nil, err
			}
			return page.Records, nil
		}), nil
}
