package http

import (
	"context"
	"encoding/json"
	"net/http"
)

// Paginator derives the request for the page after resp, or nil when the
// result set is exhausted.
type Paginator interface {
	NextPage(ctx context.Context, resp *Response) (*Request, error)
}

// LinkPaginator follows the relative link a page carries until done is
// true, the way the query resource returns nextRecordsUrl.
type LinkPaginator struct{}

// NewLinkPaginator returns a nextRecordsUrl paginator.
func NewLinkPaginator() *LinkPaginator {
	return &LinkPaginator{}
}

type pageLinks struct {
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl"`
}

func (p *LinkPaginator) NextPage(_ context.Context, resp *Response) (*Request, error) {
	var links pageLinks
	if err := json.Unmarshal(resp.Body, &links); err != nil {
		return nil, err
	}
	if links.Done || links.NextRecordsURL == "" {
		return nil, nil
	}
	return &Request{Method: http.MethodGet, Path: links.NextRecordsURL}, nil
}

// PaginatedIterator yields the items of every page, fetching the next
// page only when the current one is drained.
type PaginatedIterator[T any] struct {
	ctx       context.Context
	client    *Client
	paginator Paginator
	parse     func(resp *Response) ([]T, error)

	page    []T
	pos     int
	pending *Request
	err     error
}

// NewPaginatedIterator starts iteration at first.
func NewPaginatedIterator[T any](ctx context.Context, client *Client, first *Request, paginator Paginator, parse func(resp *Response) ([]T, error)) *PaginatedIterator[T] {
	return &PaginatedIterator[T]{
		ctx:       ctx,
		client:    client,
		paginator: paginator,
		parse:     parse,
		pending:   first,
		pos:       -1,
	}
}

// Next advances to the next item. Empty pages are skipped.
func (it *PaginatedIterator[T]) Next() bool {
	for it.pos+1 >= len(it.page) {
		if it.err != nil || it.pending == nil {
			return false
		}
		if it.err = it.fetch(); it.err != nil {
			return false
		}
	}
	it.pos++
	return true
}

func (it *PaginatedIterator[T]) fetch() error {
	resp, err := it.client.Do(it.ctx, it.pending)
	if err != nil {
		return err
	}
	items, err := it.parse(resp)
	if err != nil {
		return err
	}
	next, err := it.paginator.NextPage(it.ctx, resp)
	if err != nil {
		return err
	}
	it.page, it.pos, it.pending = items, -1, next
	return nil
}

// Value returns the current item.
func (it *PaginatedIterator[T]) Value() T {
	if it.pos < 0 || it.pos >= len(it.page) {
		var zero T
		return zero
	}
	return it.page[it.pos]
}

// Err returns the error that stopped iteration.
func (it *PaginatedIterator[T]) Err() error {
	return it.err
}

// Close stops further page fetches.
func (it *PaginatedIterator[T]) Close() error {
	it.pending = nil
	return nil
}
