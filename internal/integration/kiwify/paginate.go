package kiwify

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
)

var (
	listItemKeys     = []string{"data", "items"}
	paginationKeys   = []string{"meta", "pagination"}
	nextCursorKeys   = []string{"next_cursor", "cursor", "nextPageToken"}
	nextPageKeys     = []string{"next_page", "nextPage"}
	hasMoreKeys      = []string{"has_more", "hasMore"}
	singleObjectKeys = []string{"data", "sale", "item"}
)

// Paginator walks list endpoints page by page or cursor by cursor
type Paginator struct {
	logger        *logger.Logger
	maxIterations int
}

func NewPaginator(log *logger.Logger) *Paginator {
	return &Paginator{
		logger:        log,
		maxIterations: MaxPageIterations,
	}
}

// ForEach calls handler once per item, in upstream order, until the listing
// is exhausted or the iteration bound is hit. After each page it advances to
// the next cursor, else the explicit next page, else page+1 when has_more is
// set, and stops otherwise. A handler error stops the walk and is returned.
func (p *Paginator) ForEach(ctx context.Context, list ListFunc, params ListParams, handler func(ctx context.Context, item Payload) error) error {
	page := params.Page
	if page < 1 {
		page = 1
	}
	cursor := params.Cursor

	for i := 0; i < p.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := params
		current.Page = page
		current.Cursor = cursor

		result, err := list(ctx, current)
		if err != nil {
			return err
		}

		for _, item := range result.Items {
			if err := handler(ctx, item); err != nil {
				return err
			}
		}

		switch {
		case result.NextCursor != "":
			if result.NextCursor == cursor {
				p.logger.Warnw("pagination cursor did not advance, stopping", "cursor", cursor)
				return nil
			}
			cursor = result.NextCursor
		case result.NextPage > 0:
			if result.NextPage <= page {
				p.logger.Warnw("pagination next_page did not advance, stopping",
					"page", page,
					"next_page", result.NextPage)
				return nil
			}
			page = result.NextPage
		case result.HasMore:
			page++
		default:
			return nil
		}
	}

	p.logger.Warnw("pagination safety bound reached",
		"max_iterations", p.maxIterations,
		"page", page,
		"cursor", cursor)
	return nil
}

// parsePage decodes a list response. The body is either a bare array or an
// object with the items under data or items and pagination metadata at the
// top level, under meta or under pagination.
func parsePage(body []byte) (*Page, error) {
	var raw interface{}
	if err := jsonCodec.Unmarshal(body, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode Kiwify list response").
			Mark(ierr.ErrHTTPClient)
	}

	page := &Page{}
	switch v := raw.(type) {
	case []interface{}:
		page.Items = toPayloads(v)
	case map[string]interface{}:
		for _, key := range listItemKeys {
			if items, ok := v[key].([]interface{}); ok {
				page.Items = toPayloads(items)
				break
			}
		}

		containers := []map[string]interface{}{v}
		for _, key := range paginationKeys {
			if m, ok := v[key].(map[string]interface{}); ok {
				containers = append(containers, m)
			}
		}
		for _, m := range containers {
			if page.NextCursor == "" {
				page.NextCursor = firstString(Payload(m), nextCursorKeys)
			}
			if page.NextPage == 0 {
				page.NextPage = firstInt(Payload(m), nextPageKeys)
			}
			if !page.HasMore {
				page.HasMore = firstBool(Payload(m), hasMoreKeys)
			}
		}
	case nil:
	default:
		return nil, ierr.NewError("unexpected kiwify list response").
			WithHint("Kiwify list response is neither an array nor an object").
			Mark(ierr.ErrHTTPClient)
	}

	return page, nil
}

// parseObject decodes a detail response, unwrapping a data envelope if present
func parseObject(body []byte) (Payload, error) {
	var raw map[string]interface{}
	if err := jsonCodec.Unmarshal(body, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode Kiwify response").
			Mark(ierr.ErrHTTPClient)
	}
	for _, key := range singleObjectKeys {
		if inner, ok := raw[key].(map[string]interface{}); ok {
			return Payload(inner), nil
		}
	}
	return Payload(raw), nil
}

func toPayloads(items []interface{}) []Payload {
	out := make([]Payload, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Payload(m))
		}
	}
	return out
}

func firstInt(p Payload, keys []string) int {
	s := firstString(p, keys)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// some envelopes carry the next page as a URL
	if u, err := url.Parse(s); err == nil {
		if n, err := strconv.Atoi(u.Query().Get("page")); err == nil {
			return n
		}
	}
	return 0
}

func firstBool(p Payload, keys []string) bool {
	for _, key := range keys {
		if v, ok := lookup(p, key); ok {
			switch t := v.(type) {
			case bool:
				return t
			case string:
				return strings.EqualFold(t, "true")
			}
		}
	}
	return false
}
