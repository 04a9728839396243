package config

import (
	"sort"
	"strings"
)

// Field names that are always requested regardless of the selection maps.
// The pipeline depends on them to tag involvement and build edges.
var (
	DefaultUserFields  = []string{"id", "name", "username"}
	DefaultTweetFields = []string{"id", "text", "author_id", "created_at", "entities", "referenced_tweets"}
)

// ParseList splits a comma-separated list, trims every element and drops
// empty ones. Duplicates are removed; the first occurrence wins.
func ParseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// FieldsParam builds the value of a user.fields / tweet.fields query
// parameter: the defaults in order, followed by every selected name in
// lexical order.
func FieldsParam(defaults []string, selected map[string]bool) string {
	seen := make(map[string]struct{}, len(defaults)+len(selected))
	out := make([]string, 0, len(defaults)+len(selected))
	for _, f := range defaults {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	extra := make([]string, 0, len(selected))
	for name, on := range selected {
		name = strings.TrimSpace(name)
		if !on || name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		extra = append(extra, name)
	}
	sort.Strings(extra)

	return strings.Join(append(out, extra...), ",")
}

// UserFieldsParam returns the user.fields value for this configuration
func (c *Config) UserFieldsParam() string {
	return FieldsParam(DefaultUserFields, c.UserFields)
}

// TweetFieldsParam returns the tweet.fields value for this configuration
func (c *Config) TweetFieldsParam() string {
	return FieldsParam(DefaultTweetFields, c.TweetFields)
}
