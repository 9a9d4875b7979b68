package models

import (
	"sort"
	"time"
)

// DeletedAuthor is the author value Reddit reports for removed accounts
const DeletedAuthor = "[deleted]"

// Timeframes in collection order
const (
	TimeframeHot   = "hot"
	TimeframeDay   = "day"
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
)

// Timeframes lists the collected timeframes in collection order
var Timeframes = []string{TimeframeHot, TimeframeDay, TimeframeWeek, TimeframeMonth}

var timeframeOrder = map[string]int{
	TimeframeHot:   0,
	TimeframeDay:   1,
	TimeframeWeek:  2,
	TimeframeMonth: 3,
}

// SubredditConfig is a subreddit to collect and its base listing limit
type SubredditConfig struct {
	Name  string `yaml:"name" json:"name"`
	Limit int    `yaml:"limit" json:"limit"`
}

// GroupKey identifies one collected listing: a timeframe of a subreddit
type GroupKey struct {
	Timeframe string `json:"timeframe"`
	Subreddit string `json:"subreddit"`
}

// String renders the key as "timeframe_subreddit"
func (k GroupKey) String() string {
	return k.Timeframe + "_" + k.Subreddit
}

// MarshalText lets GroupKey be used as a JSON object key
func (k GroupKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SortGroupKeys orders keys by timeframe (hot, day, week, month, then others
// alphabetically) and then by subreddit, giving a stable iteration order over
// grouped maps.
func SortGroupKeys(keys []GroupKey) {
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := timeframeOrder[keys[i].Timeframe]
		oj, jok := timeframeOrder[keys[j].Timeframe]
		switch {
		case iok && jok && oi != oj:
			return oi < oj
		case iok != jok:
			return iok
		case keys[i].Timeframe != keys[j].Timeframe:
			return keys[i].Timeframe < keys[j].Timeframe
		}
		return keys[i].Subreddit < keys[j].Subreddit
	})
}

// SearchQuery is a keyword search over Reddit. Without subreddits the search
// covers r/all.
type SearchQuery struct {
	Keywords    []string
	Subreddits  []string
	Sort        string
	Timeframe   string
	Limit       int
	MinScore    int
	MinComments int
}

// RawPost is a post as delivered by the source. Numeric and timestamp fields
// are loosely typed because upstream payloads are not trusted: Score and
// NumComments may be numbers or numeric strings, CreatedUTC may be an epoch or
// an ISO-8601 string.
type RawPost struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Subreddit       string `json:"subreddit"`
	Score           any    `json:"score,omitempty"`
	NumComments     any    `json:"num_comments,omitempty"`
	UpvoteRatio     any    `json:"upvote_ratio,omitempty"`
	CreatedUTC      any    `json:"created_utc"`
	SelfTextPreview string `json:"selftext_preview"`
	URL             string `json:"url"`
	Permalink       string `json:"permalink"`
	Flair           string `json:"flair"`
	IsSelf          bool   `json:"is_self"`
	Stickied        bool   `json:"stickied"`
	Locked          bool   `json:"locked"`
}

// RawGroups maps each collected listing to its raw posts. Entries may be nil.
type RawGroups map[GroupKey][]*RawPost

// CleanedPost is a validated and normalized post
type CleanedPost struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Subreddit       string    `json:"subreddit"`
	Score           int       `json:"score"`
	NumComments     int       `json:"num_comments"`
	UpvoteRatio     float64   `json:"upvote_ratio"`
	CreatedAt       time.Time `json:"created_at"`
	SelfTextPreview string    `json:"selftext_preview"`
	URL             string    `json:"url"`
	Permalink       string    `json:"permalink"`
	Flair           string    `json:"flair"`
	IsSelf          bool      `json:"is_self"`
	Stickied        bool      `json:"stickied"`
	Locked          bool      `json:"locked"`
	SourceTimeframe string    `json:"source_timeframe"`
}

// Raw converts the cleaned post back into the source representation
func (p CleanedPost) Raw() *RawPost {
	return &RawPost{
		ID:              p.ID,
		Title:           p.Title,
		Author:          p.Author,
		Subreddit:       p.Subreddit,
		Score:           p.Score,
		NumComments:     p.NumComments,
		UpvoteRatio:     p.UpvoteRatio,
		CreatedUTC:      p.CreatedAt.UTC().Format(time.RFC3339),
		SelfTextPreview: p.SelfTextPreview,
		URL:             p.URL,
		Permalink:       p.Permalink,
		Flair:           p.Flair,
		IsSelf:          p.IsSelf,
		Stickied:        p.Stickied,
		Locked:          p.Locked,
	}
}

// CleanedGroups maps each collected listing to its cleaned posts
type CleanedGroups map[GroupKey][]CleanedPost

// Keys returns the group keys in stable order
func (g CleanedGroups) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	SortGroupKeys(keys)
	return keys
}

// Count returns the number of posts across all groups
func (g CleanedGroups) Count() int {
	total := 0
	for _, posts := range g {
		total += len(posts)
	}
	return total
}

// CleaningStats holds the outcome counters of a cleaning run
type CleaningStats struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Filtered int `json:"filtered"`
}

// CleaningRates are the valid/invalid/filtered shares of the total, in percent
type CleaningRates struct {
	ValidRate   float64 `json:"valid_rate"`
	InvalidRate float64 `json:"invalid_rate"`
	FilterRate  float64 `json:"filter_rate"`
}

// Rates computes the percentages; all zero when nothing was processed
func (s CleaningStats) Rates() CleaningRates {
	if s.Total == 0 {
		return CleaningRates{}
	}
	total := float64(s.Total)
	return CleaningRates{
		ValidRate:   float64(s.Valid) / total * 100,
		InvalidRate: float64(s.Invalid) / total * 100,
		FilterRate:  float64(s.Filtered) / total * 100,
	}
}

// Add merges another set of counters into s
func (s CleaningStats) Add(other CleaningStats) CleaningStats {
	return CleaningStats{
		Total:    s.Total + other.Total,
		Valid:    s.Valid + other.Valid,
		Invalid:  s.Invalid + other.Invalid,
		Filtered: s.Filtered + other.Filtered,
	}
}

// ScoredPost is a deduplicated post annotated with its quality score and,
// after summarization, either a summary or a summary error.
type ScoredPost struct {
	CleanedPost
	QualityScore float64 `json:"quality_score"`
	Summary      *string `json:"summary,omitempty"`
	SummaryError *string `json:"summary_error,omitempty"`
}

// SetSummary records a generated summary, clearing any previous error
func (p *ScoredPost) SetSummary(summary string) {
	p.Summary = &summary
	p.SummaryError = nil
}

// SetSummaryError records a failed summarization, clearing any summary
func (p *ScoredPost) SetSummaryError(err error) {
	msg := err.Error()
	p.SummaryError = &msg
	p.Summary = nil
}

// Comment is a single comment on a post
type Comment struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	IsSubmitter bool      `json:"is_submitter"`
	Replies     []Comment `json:"replies,omitempty"`
}

// DetailedPost is a post with its full body and comment tree
type DetailedPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Subreddit   string    `json:"subreddit"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Permalink   string    `json:"permalink"`
	Score       int       `json:"score"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Flair       string    `json:"flair"`
	IsSelf      bool      `json:"is_self"`
	Comments    []Comment `json:"comments"`
	CollectedAt time.Time `json:"collected_at"`
}
