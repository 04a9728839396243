package twitter

import (
	"context"
	"fmt"

	"tweetgraph/pkg/ratelimit"
)

// PageURL builds the request URL for the page continuing at token. The
// first page is requested with an empty token.
type PageURL func(token string) string

// PageError reports why a pagination loop stopped early
type PageError struct {
	Class ratelimit.Class
	Page  int
	Items int
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s pagination stopped at page %d after %d items: %v", e.Class, e.Page, e.Items, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// FetchAll walks every page of one endpoint and returns the items in the
// order they were served. Before each request it acquires lim; after each
// response lim is updated from the headers. The loop continues while a page
// reports a positive result_count and a next_token.
//
// Failed requests are not retried. The items gathered so far are returned
// with a *PageError so callers can keep the partial result.
func FetchAll[T any](ctx context.Context, c *Client, class ratelimit.Class, lim ratelimit.Limiter, build PageURL) ([]T, error) {
	var items []T
	token := ""

	for page := 1; ; page++ {
		if err := lim.Acquire(ctx); err != nil {
			return items, &PageError{Class: class, Page: page, Items: len(items), Err: err}
		}

		var p Page[T]
		if err := c.getJSON(ctx, string(class), lim, build(token), &p); err != nil {
			c.logger.WarnWithFields("pagination stopped early", map[string]interface{}{
				"endpoint_class": string(class),
				"page":           page,
				"items":          len(items),
				"error":          err.Error(),
			})
			return items, &PageError{Class: class, Page: page, Items: len(items), Err: err}
		}

		items = append(items, p.Data...)
		if !p.Meta.HasNext() {
			c.logger.DebugWithFields("pagination complete", map[string]interface{}{
				"endpoint_class": string(class),
				"pages":          page,
				"items":          len(items),
			})
			return items, nil
		}
		token = p.Meta.NextToken
	}
}
