package restclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// TotalCountHeader carries the unpaged row count on list responses.
const TotalCountHeader = "X-Total-Count"

// Accessor is a remote.Accessor for one table served by the backend.
type Accessor[P remote.Table] struct {
	c     *Client
	table string
}

var _ remote.Accessor[remote.Table] = (*Accessor[remote.Table])(nil)

// NewAccessor returns an accessor for P's table.
func NewAccessor[P remote.Table](c *Client) *Accessor[P] {
	var zero P
	return &Accessor[P]{c: c, table: zero.TableName()}
}

type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type listBody[P any] struct {
	Data       []P        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func (a *Accessor[P]) collection() string { return "/" + url.PathEscape(a.table) }

func (a *Accessor[P]) item(id string) string {
	return a.collection() + "/" + url.PathEscape(id)
}

// List sends equality filters as "col=eq.value".
func (a *Accessor[P]) List(ctx context.Context, q remote.Query) (remote.Page[P], error) {
	vals := url.Values{}
	vals.Set("page", strconv.Itoa(q.Page))
	vals.Set("page_size", strconv.Itoa(q.PageSize))
	for col, v := range q.Filters {
		vals.Set(col, "eq."+v)
	}

	var body listBody[P]
	hdr, err := a.c.do(ctx, http.MethodGet, a.collection(), vals, nil, &body)
	if err != nil {
		return remote.Page[P]{}, err
	}
	total := body.Pagination.Total
	if n, err := strconv.ParseInt(hdr.Get(TotalCountHeader), 10, 64); err == nil {
		total = n
	}
	if body.Data == nil {
		body.Data = []P{}
	}
	return remote.Page[P]{Records: body.Data, Total: total}, nil
}

func (a *Accessor[P]) Get(ctx context.Context, id string) (P, error) {
	var out P
	_, err := a.c.do(ctx, http.MethodGet, a.item(id), nil, nil, &out)
	return out, err
}

func (a *Accessor[P]) Insert(ctx context.Context, patch remote.Patch) (P, error) {
	var out P
	_, err := a.c.do(ctx, http.MethodPost, a.collection(), nil, patchBody(patch), &out)
	return out, err
}

func (a *Accessor[P]) Update(ctx context.Context, id string, patch remote.Patch) (P, error) {
	var out P
	_, err := a.c.do(ctx, http.MethodPatch, a.item(id), nil, patchBody(patch), &out)
	return out, err
}

func (a *Accessor[P]) Delete(ctx context.Context, id string) error {
	_, err := a.c.do(ctx, http.MethodDelete, a.item(id), nil, nil, nil)
	return err
}

func (a *Accessor[P]) Search(ctx context.Context, query string) ([]P, error) {
	var body listBody[P]
	vals := url.Values{"q": []string{query}}
	if _, err := a.c.do(ctx, http.MethodGet, a.collection()+"/search", vals, nil, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		body.Data = []P{}
	}
	return body.Data, nil
}

func patchBody(p remote.Patch) remote.Patch {
	if p == nil {
		return remote.Patch{}
	}
	return p
}
