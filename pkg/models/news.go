package models

// NewsItem is a single headline from any news source.
type NewsItem struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	PublishedAt *string `json:"publishedAt"` // RFC 3339 when known
}

// SortKey returns the published timestamp, or "" when unknown so that such
// items sort last in descending order.
func (n NewsItem) SortKey() string {
	if n.PublishedAt == nil {
		return ""
	}
	return *n.PublishedAt
}

// NewsResponse is the body of GET /ticker/news.
type NewsResponse struct {
	Symbol  string     `json:"symbol"`
	OK      bool       `json:"ok"`
	Items   []NewsItem `json:"items"`
	Sources []string   `json:"sources"`
	Error   *string    `json:"error"`
}

// NewsOutcome is the outcome of a news adapter.
type NewsOutcome = Outcome[[]NewsItem]
