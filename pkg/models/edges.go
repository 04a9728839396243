package models

// Edge key prefixes
const (
	MentionPrefix = "ME"
	RetweetPrefix = "RE"
)

// MentionEdge is a directed author -> mentioned user relationship
type MentionEdge struct {
	Key      string `json:"_key"`
	From     string `json:"_from"`
	To       string `json:"_to"`
	TweetID  string `json:"tweetId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RetweetEdge is a directed retweeting author -> original author relationship
type RetweetEdge struct {
	Key              string `json:"_key"`
	From             string `json:"_from"`
	To               string `json:"_to"`
	TweetID          string `json:"tweetId"`
	RetweetedTweetID string `json:"retweetedTweetId"`
}

// EdgeKey builds the deterministic key of an edge: prefix + from + "-" + to.
// Repeated relationships between the same pair map to the same key.
func EdgeKey(prefix, fromID, toID string) string {
	return prefix + fromID + "-" + toID
}

// MentionKey returns the key of the mention edge fromID -> toID
func MentionKey(fromID, toID string) string {
	return EdgeKey(MentionPrefix, fromID, toID)
}

// RetweetKey returns the key of the retweet edge fromID -> toID
func RetweetKey(fromID, toID string) string {
	return EdgeKey(RetweetPrefix, fromID, toID)
}

// VertexRef returns the "<collection>/<key>" reference used in _from and _to
func VertexRef(collection, key string) string {
	return collection + "/" + key
}

// NewMentionEdge builds the mention edge for tweet t mentioning m, with
// endpoints in the given account collection.
func NewMentionEdge(accounts string, t *Tweet, m Mention) MentionEdge {
	return MentionEdge{
		Key:      MentionKey(t.AuthorID, m.ID),
		From:     VertexRef(accounts, t.AuthorID),
		To:       VertexRef(accounts, m.ID),
		TweetID:  t.ID,
		UserID:   m.ID,
		Username: m.Username,
	}
}

// NewRetweetEdge builds the retweet edge for tweet t referencing original,
// with endpoints in the given account collection.
func NewRetweetEdge(accounts string, t, original *Tweet) RetweetEdge {
	return RetweetEdge{
		Key:              RetweetKey(t.AuthorID, original.AuthorID),
		From:             VertexRef(accounts, t.AuthorID),
		To:               VertexRef(accounts, original.AuthorID),
		TweetID:          t.ID,
		RetweetedTweetID: original.ID,
	}
}
