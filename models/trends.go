package models

// TrendAggregate is a read-only snapshot of corpus statistics computed over
// every cleaned appearance of a post, duplicates across timeframes included.
type TrendAggregate struct {
	PostCount  int                       `json:"post_count"`
	Keywords   KeywordTrends             `json:"keyword_trends"`
	Authors    AuthorTrends              `json:"author_trends"`
	Subreddits SubredditTrends           `json:"subreddit_trends"`
	Engagement EngagementTrends          `json:"engagement_trends"`
	Timeframes map[string]TimeframeStats `json:"time_distribution"`
}

// Empty reports whether the aggregate carries no signal
func (t *TrendAggregate) Empty() bool {
	return t == nil || t.PostCount == 0
}

// KeywordCount is one vocabulary keyword and its number of matching posts
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// KeywordTrends holds keyword frequencies over the domain vocabulary
type KeywordTrends struct {
	TotalFound int            `json:"total_keywords_found"`
	Frequency  []KeywordCount `json:"keyword_frequency"`
	Trending   []string       `json:"trending_keywords"`
}

// AuthorStats aggregates one author's posts
type AuthorStats struct {
	Author          string  `json:"author"`
	PostCount       int     `json:"posts_count"`
	TotalScore      int     `json:"total_score"`
	TotalComments   int     `json:"total_comments"`
	AvgScore        float64 `json:"avg_score"`
	TotalEngagement int     `json:"total_engagement"`
}

// AuthorTrends holds the ranked multi-post authors
type AuthorTrends struct {
	TotalUnique int           `json:"total_unique_authors"`
	Active      int           `json:"active_authors"`
	Top         []AuthorStats `json:"top_authors"`
}

// Rank returns the 1-based rank of author among the top authors, or 0
func (a AuthorTrends) Rank(author string) int {
	for i, stats := range a.Top {
		if stats.Author == author {
			return i + 1
		}
	}
	return 0
}

// SubredditStats aggregates one subreddit's posts
type SubredditStats struct {
	Subreddit  string  `json:"subreddit"`
	PostCount  int     `json:"posts"`
	TotalScore int     `json:"total_score"`
	AvgScore   float64 `json:"avg_score"`
}

// SubredditTrends holds subreddits ranked by total score
type SubredditTrends struct {
	Total       int              `json:"total_subreddits"`
	Performance []SubredditStats `json:"subreddit_performance"`
}

// Lookup finds a ranked subreddit by name
func (s SubredditTrends) Lookup(subreddit string) (SubredditStats, bool) {
	for _, stats := range s.Performance {
		if stats.Subreddit == subreddit {
			return stats, true
		}
	}
	return SubredditStats{}, false
}

// EngagementTrends summarizes comments-per-score ratios
type EngagementTrends struct {
	AvgRatio    float64       `json:"avg_engagement_ratio"`
	MedianRatio float64       `json:"median_engagement_ratio"`
	HighCount   int           `json:"high_engagement_count"`
	TopPosts    []CleanedPost `json:"top_engagement_posts"`
}

// TimeframeStats accumulates one timeframe's listings. AvgScore and
// AvgComments are sums of per-listing means, not a weighted mean over posts.
type TimeframeStats struct {
	TotalPosts  int     `json:"total_posts"`
	AvgScore    float64 `json:"avg_score"`
	AvgComments float64 `json:"avg_comments"`
}

// TimeframeRankings are the per-timeframe leaderboards of a run
type TimeframeRankings struct {
	Hot   []CleanedPost `json:"hot"`
	Week  []CleanedPost `json:"week"`
	Month []CleanedPost `json:"month"`
}
