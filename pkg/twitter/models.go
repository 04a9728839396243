package twitter

import "fmt"

// Page is the envelope every v2 list endpoint returns
type Page[T any] struct {
	Data   []T        `json:"data"`
	Meta   Meta       `json:"meta"`
	Errors []APIError `json:"errors,omitempty"`
}

// Meta carries pagination state
type Meta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// HasNext reports whether another page should be requested
func (m Meta) HasNext() bool {
	return m.ResultCount > 0 && m.NextToken != ""
}

// APIError is a partial error reported next to data, e.g. an unknown
// username in a batch lookup.
type APIError struct {
	Value  string `json:"value,omitempty"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
	Type   string `json:"type"`
}

func (e APIError) String() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Title, e.Detail, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}
