package models

import (
	"encoding/json"
	"strings"
)

// Account is a user document as stored in the users and users-involved
// collections. Key mirrors ID.
type Account struct {
	Key      string `json:"_key"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`

	CreatedAt       string          `json:"created_at,omitempty"`
	Description     string          `json:"description,omitempty"`
	Location        string          `json:"location,omitempty"`
	PinnedTweetID   string          `json:"pinned_tweet_id,omitempty"`
	ProfileImageURL string          `json:"profile_image_url,omitempty"`
	Protected       bool            `json:"protected,omitempty"`
	URL             string          `json:"url,omitempty"`
	Verified        bool            `json:"verified,omitempty"`
	PublicMetrics   *UserMetrics    `json:"public_metrics,omitempty"`
	Entities        json.RawMessage `json:"entities,omitempty"`
	Withheld        json.RawMessage `json:"withheld,omitempty"`

	// Step2Performed is set once the account's timeline has been fetched
	// and tagged. It never goes back to false.
	Step2Performed bool `json:"step2Performed"`
}

// UserMetrics holds follower/following counters
type UserMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
	ListedCount    int `json:"listed_count"`
}

// Tweet is a tweet document as stored in the tweets and tweets-involved
// collections. Tweets are immutable once stored.
type Tweet struct {
	Key               string            `json:"_key"`
	ID                string            `json:"id"`
	Text              string            `json:"text"`
	AuthorID          string            `json:"author_id"`
	CreatedAt         string            `json:"created_at,omitempty"`
	ConversationID    string            `json:"conversation_id,omitempty"`
	InReplyToUserID   string            `json:"in_reply_to_user_id,omitempty"`
	Lang              string            `json:"lang,omitempty"`
	Source            string            `json:"source,omitempty"`
	ReplySettings     string            `json:"reply_settings,omitempty"`
	PossiblySensitive bool              `json:"possibly_sensitive,omitempty"`
	Entities          *Entities         `json:"entities,omitempty"`
	ReferencedTweets  []ReferencedTweet `json:"referenced_tweets,omitempty"`
	PublicMetrics     *TweetMetrics     `json:"public_metrics,omitempty"`

	Attachments        json.RawMessage `json:"attachments,omitempty"`
	ContextAnnotations json.RawMessage `json:"context_annotations,omitempty"`
	Geo                json.RawMessage `json:"geo,omitempty"`
	Withheld           json.RawMessage `json:"withheld,omitempty"`
}

// Entities is the structured sub-object of a tweet
type Entities struct {
	Hashtags    []Hashtag       `json:"hashtags,omitempty"`
	Mentions    []Mention       `json:"mentions,omitempty"`
	Cashtags    json.RawMessage `json:"cashtags,omitempty"`
	URLs        json.RawMessage `json:"urls,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
}

// Hashtag is one #tag occurrence
type Hashtag struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Tag   string `json:"tag"`
}

// Mention is one @user occurrence
type Mention struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Username string `json:"username"`
	ID       string `json:"id"`
}

// ReferencedTweet links a tweet to the tweet it retweets, quotes or replies to
type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// TweetMetrics holds engagement counters
type TweetMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// Hashtags returns the tags of t, empty when it has no entities
func (t *Tweet) Hashtags() []string {
	if t.Entities == nil {
		return nil
	}
	tags := make([]string, 0, len(t.Entities.Hashtags))
	for _, h := range t.Entities.Hashtags {
		tags = append(tags, h.Tag)
	}
	return tags
}

// Mentions returns the user mentions of t
func (t *Tweet) Mentions() []Mention {
	if t.Entities == nil {
		return nil
	}
	return t.Entities.Mentions
}

// MatchesAny reports whether one of the tweet's hashtags equals one of tags,
// ignoring case.
func (t *Tweet) MatchesAny(tags []string) bool {
	for _, h := range t.Hashtags() {
		for _, want := range tags {
			if strings.EqualFold(h, want) {
				return true
			}
		}
	}
	return false
}
