package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tweetgraph/pkg/config"
	"tweetgraph/pkg/errors"
	"tweetgraph/pkg/logger"
	"tweetgraph/pkg/models"
	"tweetgraph/pkg/ratelimit"
)

// Recorder receives request and pacing observations. pkg/metrics provides
// the prometheus implementation.
type Recorder interface {
	ObserveRequest(class string, status int, elapsed time.Duration)
	ObserveWait(class string, wait time.Duration, exhausted bool)
	SetRemaining(class string, remaining int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, int, time.Duration) {}
func (nopRecorder) ObserveWait(string, time.Duration, bool)   {}
func (nopRecorder) SetRemaining(string, int)                  {}

// classLookup tags the unpaced batch username lookup in logs and metrics
const classLookup = "lookup"

// Client talks to the v2 API. Each endpoint class owns its own limiter and
// is driven by one pagination loop at a time.
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	baseURL     string
	userFields  string
	tweetFields string
	logger      logger.Logger
	recorder    Recorder

	followers *ratelimit.EndpointLimiter
	timeline  *ratelimit.EndpointLimiter
	search    *ratelimit.EndpointLimiter
}

type clientOptions struct {
	httpClient *http.Client
	clock      ratelimit.Clock
	recorder   Recorder
}

// Option customises a Client
type Option func(*clientOptions)

// WithHTTPClient replaces the HTTP client built from the timeout setting
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithClock drives every limiter from c
func WithClock(c ratelimit.Clock) Option {
	return func(o *clientOptions) { o.clock = c }
}

// WithRecorder sends request metrics to r
func WithRecorder(r Recorder) Option {
	return func(o *clientOptions) { o.recorder = r }
}

// NewClient creates an API client from the run configuration
func NewClient(cfg *config.Config, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	o := clientOptions{clock: ratelimit.SystemClock(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Twitter.Timeout}
	}

	baseURL := cfg.Twitter.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: o.httpClient,
		headers: map[string]string{
			"Authorization": "Bearer " + cfg.Twitter.BearerToken,
			"User-Agent":    cfg.Twitter.ClientID,
			"Accept":        "application/json",
		},
		baseURL:     baseURL,
		userFields:  cfg.UserFieldsParam(),
		tweetFields: cfg.TweetFieldsParam(),
		logger:      log.WithField("component", "twitter"),
		recorder:    o.recorder,
	}

	limiter := func(class ratelimit.Class, extra ...ratelimit.Option) *ratelimit.EndpointLimiter {
		base := []ratelimit.Option{
			ratelimit.WithClock(o.clock),
			ratelimit.WithResetMargin(cfg.RateLimit.ResetMargin),
			ratelimit.WithObserver(c.onWait),
		}
		return ratelimit.New(class, append(base, extra...)...)
	}
	c.followers = limiter(ratelimit.ClassFollower)
	c.timeline = limiter(ratelimit.ClassTimeline)
	c.search = limiter(ratelimit.ClassArchiveSearch, ratelimit.WithSpacing(cfg.RateLimit.SearchSpacing))
	return c
}

// Limiter returns the limiter pacing class
func (c *Client) Limiter(class ratelimit.Class) *ratelimit.EndpointLimiter {
	switch class {
	case ratelimit.ClassFollower:
		return c.followers
	case ratelimit.ClassTimeline:
		return c.timeline
	case ratelimit.ClassArchiveSearch:
		return c.search
	}
	return nil
}

func (c *Client) onWait(ev ratelimit.WaitEvent) {
	c.recorder.ObserveWait(string(ev.Class), ev.Wait, ev.Exhausted)
	if ev.Exhausted {
		logger.LogRateLimitWait(c.logger, string(ev.Class), ev.Remaining, ev.Wait)
		return
	}
	c.logger.DebugWithFields("spacing request", map[string]interface{}{
		"endpoint_class": string(ev.Class),
		"wait":           ev.Wait,
	})
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// getJSON issues a GET for class and decodes the body into target. When lim
// is set it is updated from the rate limit headers of any response that
// carries them, successful or not.
func (c *Client) getJSON(ctx context.Context, class string, lim ratelimit.Limiter, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}

	start := time.Now()
	resp, err := c.doRequest(req)
	if err != nil {
		c.recorder.ObserveRequest(class, 0, time.Since(start))
		return err
	}
	defer resp.Body.Close()
	c.recorder.ObserveRequest(class, resp.StatusCode, time.Since(start))

	if lim != nil {
		if limit, remaining, resetAt, ok := ratelimit.ParseHeaders(resp.Header); ok {
			lim.Update(limit, remaining, resetAt)
			c.recorder.SetRemaining(class, remaining)
			c.logger.DebugWithFields("rate limit updated", map[string]interface{}{
				"endpoint_class": class,
				"limit":          limit,
				"remaining":      remaining,
				"reset":          resetAt.Unix(),
			})
		}
	}

	if err := c.checkResponseStatus(resp, url); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

// checkResponseStatus maps a non-2xx response to a typed error
func (c *Client) checkResponseStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := errors.FromStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    url,
	}
	switch apiErr.Type {
	case errors.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
	case errors.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
	case errors.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errors.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
	}
	return apiErr
}

// ResolveAccounts looks up usernames in a single unpaced batch call. It is
// meant to run once per crawl with a short list. On failure it returns no
// accounts together with the cause; callers treat an empty result as fatal.
func (c *Client) ResolveAccounts(ctx context.Context, usernames []string) ([]models.Account, error) {
	if len(usernames) == 0 {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "no usernames to resolve")
	}

	url := UsersByURL(c.baseURL, usernames, c.userFields)
	c.logger.DebugWithFields("resolving seed accounts", map[string]interface{}{
		"usernames": usernames,
	})

	var page Page[models.Account]
	if err := c.getJSON(ctx, classLookup, nil, url, &page); err != nil {
		c.logger.ErrorWithFields("failed to resolve accounts", map[string]interface{}{
			"usernames": usernames,
			"error":     err.Error(),
		})
		return nil, err
	}

	for _, e := range page.Errors {
		c.logger.WarnWithFields("account lookup reported an error", map[string]interface{}{
			"detail": e.String(),
		})
	}
	for i := range page.Data {
		page.Data[i].Key = page.Data[i].ID
	}
	return page.Data, nil
}

// FetchFollowers returns every follower of userID. A non-nil error means the
// list was cut short; the accounts gathered before the failure are still
// returned.
func (c *Client) FetchFollowers(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := FetchAll[models.Account](ctx, c, ratelimit.ClassFollower, c.followers, func(token string) string {
		return FollowersURL(c.baseURL, userID, c.userFields, token)
	})
	for i := range accounts {
		accounts[i].Key = accounts[i].ID
	}
	return accounts, err
}

// FetchTimeline returns the tweets userID posted inside [from, to]. Errors
// are partial as for FetchFollowers.
func (c *Client) FetchTimeline(ctx context.Context, userID string, from, to time.Time) ([]models.Tweet, error) {
	tweets, err := FetchAll[models.Tweet](ctx, c, ratelimit.ClassTimeline, c.timeline, func(token string) string {
		return TimelineURL(c.baseURL, userID, from, to, c.tweetFields, token)
	})
	for i := range tweets {
		tweets[i].Key = tweets[i].ID
	}
	return tweets, err
}

// SearchByHashtags runs a full-archive search for tweets by account carrying
// any of hashtags inside [from, to].
func (c *Client) SearchByHashtags(ctx context.Context, account string, from, to time.Time, hashtags []string) ([]models.Tweet, error) {
	if len(hashtags) == 0 {
		return nil, fmt.Errorf("search %s: no hashtags", account)
	}
	tweets, err := FetchAll[models.Tweet](ctx, c, ratelimit.ClassArchiveSearch, c.search, func(token string) string {
		return SearchURL(c.baseURL, account, hashtags, from, to, c.tweetFields, token)
	})
	for i := range tweets {
		tweets[i].Key = tweets[i].ID
	}
	return tweets, err
}
