// Package twitter is a small client for the v2 API endpoints the crawler
// needs: batch username lookup, followers, user timelines and full-archive
// search.
//
// Every paginated endpoint belongs to a rate limit class with its own
// ratelimit.EndpointLimiter, and is walked by FetchAll:
//
//	client := twitter.NewClient(cfg, log)
//	followers, err := client.FetchFollowers(ctx, "12")
//	if err != nil {
//	    // followers still holds the pages fetched before the failure
//	}
//
// Non-success responses are returned as *errors.Error values classified by
// status code; pagination failures are wrapped in *PageError.
package twitter
