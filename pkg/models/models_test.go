package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeKeysAreDeterministic(t *testing.T) {
	assert.Equal(t, "ME1-2", MentionKey("1", "2"))
	assert.Equal(t, "RE1-2", RetweetKey("1", "2"))
	assert.Equal(t, MentionKey("10", "20"), MentionKey("10", "20"))
	assert.NotEqual(t, MentionKey("1", "2"), MentionKey("2", "1"))
	assert.NotEqual(t, MentionKey("1", "2"), RetweetKey("1", "2"))
}

func TestNewMentionEdge(t *testing.T) {
	tw := &Tweet{ID: "t1", AuthorID: "1"}
	e := NewMentionEdge("users-involved", tw, Mention{ID: "2", Username: "bob"})

	assert.Equal(t, MentionEdge{
		Key:      "ME1-2",
		From:     "users-involved/1",
		To:       "users-involved/2",
		TweetID:  "t1",
		UserID:   "2",
		Username: "bob",
	}, e)
}

func TestNewRetweetEdge(t *testing.T) {
	rt := &Tweet{ID: "t2", AuthorID: "3"}
	orig := &Tweet{ID: "t1", AuthorID: "1"}
	e := NewRetweetEdge("users", rt, orig)

	assert.Equal(t, "RE3-1", e.Key)
	assert.Equal(t, "users/3", e.From)
	assert.Equal(t, "users/1", e.To)
	assert.Equal(t, "t2", e.TweetID)
	assert.Equal(t, "t1", e.RetweetedTweetID)
}

func TestMatchesAnyIgnoresCase(t *testing.T) {
	tw := &Tweet{Entities: &Entities{Hashtags: []Hashtag{{Tag: "GoLang"}, {Tag: "news"}}}}

	assert.True(t, tw.MatchesAny([]string{"golang"}))
	assert.True(t, tw.MatchesAny([]string{"x", "NEWS"}))
	assert.False(t, tw.MatchesAny([]string{"rust"}))
	assert.False(t, (&Tweet{}).MatchesAny([]string{"golang"}))
}

func TestTweetDecodesAPIShape(t *testing.T) {
	raw := `{
		"id": "t1",
		"text": "hello @bob #foo",
		"author_id": "1",
		"created_at": "2021-01-05T10:00:00.000Z",
		"entities": {
			"hashtags": [{"start": 12, "end": 16, "tag": "foo"}],
			"mentions": [{"start": 6, "end": 10, "username": "bob", "id": "2"}],
			"urls": [{"start": 0, "end": 1, "url": "https://t.co/x"}]
		},
		"referenced_tweets": [{"type": "retweeted", "id": "t0"}]
	}`

	var tw Tweet
	require.NoError(t, json.Unmarshal([]byte(raw), &tw))

	assert.Equal(t, []string{"foo"}, tw.Hashtags())
	require.Len(t, tw.Mentions(), 1)
	assert.Equal(t, "2", tw.Mentions()[0].ID)
	assert.Equal(t, []ReferencedTweet{{Type: "retweeted", ID: "t0"}}, tw.ReferencedTweets)
	assert.JSONEq(t, `[{"start": 0, "end": 1, "url": "https://t.co/x"}]`, string(tw.Entities.URLs))
}

func TestAccountKeepsStep2Flag(t *testing.T) {
	data, err := json.Marshal(Account{Key: "1", ID: "1", Username: "alice"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"step2Performed":false`)
	assert.NotContains(t, string(data), "location")
}
