package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/seenimoa/tickerlab/pkg/models"
)

const dedupPrefixRunes = 60

// NewsOptions bounds the merged news list.
type NewsOptions struct {
	RecencyDays int
	MaxItems    int
}

// DefaultNewsOptions returns a 3-day window and 20 items.
func DefaultNewsOptions() NewsOptions {
	return NewsOptions{RecencyDays: 3, MaxItems: 20}
}

// NewsList is one source's headlines. RecentOnly marks sources whose only
// meaningful offering is current headlines; their stale items are dropped.
type NewsList struct {
	Source     string
	RecentOnly bool
	Outcome    models.NewsOutcome
}

// News merges lists in the order given. Duplicates by normalized title keep
// the first occurrence, the result is sorted newest first with unknown
// timestamps last, and truncated to opts.MaxItems.
func News(symbol string, now time.Time, opts NewsOptions, lists ...NewsList) models.NewsResponse {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultNewsOptions().MaxItems
	}
	cutoff := cutoffDate(now, opts.RecencyDays)

	seen := make(map[string]bool)
	items := make([]models.NewsItem, 0)
	for _, l := range lists {
		if !l.Outcome.OK {
			continue
		}
		for _, it := range l.Outcome.Value {
			if l.RecentOnly && isStale(it, cutoff) {
				continue
			}
			key := TitleKey(it.Title)
			if key != "" {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			items = append(items, it)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortKey() > items[j].SortKey()
	})
	if len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	resp := models.NewsResponse{
		Symbol:  symbol,
		OK:      len(items) > 0,
		Items:   items,
		Sources: publishers(items),
	}
	if !resp.OK {
		msg := fmt.Sprintf("No recent news found (last %d days)", opts.RecencyDays)
		resp.Error = &msg
	}
	return resp
}

// TitleKey normalizes a headline for deduplication: lowercase, punctuation
// to spaces, whitespace collapsed, first 60 runes.
func TitleKey(title string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)
	key := []rune(strings.Join(strings.Fields(mapped), " "))
	if len(key) > dedupPrefixRunes {
		key = key[:dedupPrefixRunes]
	}
	return strings.TrimSpace(string(key))
}

// cutoffDate is the first calendar day (UTC) still inside the window.
func cutoffDate(now time.Time, days int) time.Time {
	d := now.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
}

// isStale reports whether it was published before cutoff. Items with no
// parseable timestamp are kept.
func isStale(it models.NewsItem, cutoff time.Time) bool {
	if it.PublishedAt == nil {
		return false
	}
	pub, ok := publishedDay(*it.PublishedAt)
	if !ok {
		return false
	}
	return pub.Before(cutoff)
}

func publishedDay(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), true
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func publishers(items []models.NewsItem) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, it := range items {
		if it.Source != "" && !seen[it.Source] {
			seen[it.Source] = true
			out = append(out, it.Source)
		}
	}
	sort.Strings(out)
	return out
}
