package twitter

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the root of the v2 API. Paths below are relative to it.
	DefaultBaseURL = "https://api.twitter.com/2/"

	// UsersByEndpoint resolves usernames to accounts
	UsersByEndpoint = "users/by"

	// FollowersPageSize is the largest page the followers endpoint serves
	FollowersPageSize = 1000

	// TimelinePageSize is the largest page the user tweets endpoint serves
	TimelinePageSize = 100

	// SearchPageSize is the largest page full-archive search serves
	SearchPageSize = 100
)

// joinURL appends path and the encoded query to base
func joinURL(base, path string, params url.Values) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u := base + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// UsersByURL builds the batch username lookup URL
func UsersByURL(base string, usernames []string, userFields string) string {
	params := url.Values{}
	params.Set("usernames", strings.Join(usernames, ","))
	if userFields != "" {
		params.Set("user.fields", userFields)
	}
	return joinURL(base, UsersByEndpoint, params)
}

// FollowersURL builds one followers page request. token is empty on the
// first page.
func FollowersURL(base, userID, userFields, token string) string {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(FollowersPageSize))
	if userFields != "" {
		params.Set("user.fields", userFields)
	}
	if token != "" {
		params.Set("pagination_token", token)
	}
	return joinURL(base, "users/"+url.PathEscape(userID)+"/followers", params)
}

// TimelineURL builds one page of a user's tweets inside [from, to]
func TimelineURL(base, userID string, from, to time.Time, tweetFields, token string) string {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(TimelinePageSize))
	params.Set("start_time", formatTime(from))
	params.Set("end_time", formatTime(to))
	if tweetFields != "" {
		params.Set("tweet.fields", tweetFields)
	}
	if token != "" {
		params.Set("pagination_token", token)
	}
	return joinURL(base, "users/"+url.PathEscape(userID)+"/tweets", params)
}

// SearchQuery builds the archive search expression for tweets by account
// carrying any of hashtags, e.g. "from:alice (#go OR #rust)".
func SearchQuery(account string, hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		tags = append(tags, "#"+strings.TrimPrefix(h, "#"))
	}
	return "from:" + account + " (" + strings.Join(tags, " OR ") + ")"
}

// SearchURL builds one page of a full-archive search. Unlike the user
// endpoints, search continues with next_token.
func SearchURL(base, account string, hashtags []string, from, to time.Time, tweetFields, token string) string {
	params := url.Values{}
	params.Set("query", SearchQuery(account, hashtags))
	params.Set("max_results", strconv.Itoa(SearchPageSize))
	params.Set("start_time", formatTime(from))
	params.Set("end_time", formatTime(to))
	if tweetFields != "" {
		params.Set("tweet.fields", tweetFields)
	}
	if token != "" {
		params.Set("next_token", token)
	}
	return joinURL(base, "tweets/search/all", params)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
