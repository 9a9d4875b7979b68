package stats

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	keywordFrequencyLimit = 20
	trendingLimit         = 10
	topAuthorsLimit       = 10
	topSubredditsLimit    = 10
	topEngagementLimit    = 5
	highEngagementRatio   = 0.1
)

// Vocabulary is the fixed set of domain keywords tracked across posts
var Vocabulary = []string{
	"llm", "gpt", "ai", "machine learning", "deep learning",
	"transformer", "model", "training", "fine-tune", "finetune",
	"langchain", "openai", "anthropic", "claude", "chatgpt",
	"rag", "vector", "embedding", "prompt", "agent", "ollama",
	"local", "inference", "quantization", "lora", "rlhf",
}

// Analyzer computes trend statistics over a cleaned corpus
type Analyzer struct {
	log *logrus.Logger
}

// NewAnalyzer creates a new trend analyzer
func NewAnalyzer(log *logrus.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// Analyze aggregates keyword, author, subreddit, engagement and timeframe
// statistics. It must be given every cleaned appearance, not the deduplicated
// set: a post seen under several timeframes counts once per appearance.
func (a *Analyzer) Analyze(groups models.CleanedGroups) *models.TrendAggregate {
	keys := groups.Keys()
	posts := make([]models.CleanedPost, 0, groups.Count())
	for _, key := range keys {
		posts = append(posts, groups[key]...)
	}

	if len(posts) == 0 {
		a.log.Info("No posts to analyze")
		return &models.TrendAggregate{}
	}

	aggregate := &models.TrendAggregate{
		PostCount:  len(posts),
		Keywords:   analyzeKeywords(posts),
		Authors:    analyzeAuthors(posts),
		Subreddits: analyzeSubreddits(posts),
		Engagement: analyzeEngagement(posts),
		Timeframes: analyzeTimeframes(groups, keys),
	}

	a.log.WithFields(logrus.Fields{
		"posts":             aggregate.PostCount,
		"keywords_found":    aggregate.Keywords.TotalFound,
		"trending_keywords": aggregate.Keywords.Trending,
		"active_authors":    aggregate.Authors.Active,
		"subreddits":        aggregate.Subreddits.Total,
		"high_engagement":   aggregate.Engagement.HighCount,
	}).Info("Trend analysis complete")

	return aggregate
}

func postText(p models.CleanedPost) string {
	return strings.ToLower(p.Title + " " + p.SelfTextPreview)
}

func analyzeKeywords(posts []models.CleanedPost) models.KeywordTrends {
	counts := make([]int, len(Vocabulary))
	for _, post := range posts {
		text := postText(post)
		for i, keyword := range Vocabulary {
			if strings.Contains(text, keyword) {
				counts[i]++
			}
		}
	}

	found := make([]models.KeywordCount, 0, len(Vocabulary))
	for i, keyword := range Vocabulary {
		if counts[i] > 0 {
			found = append(found, models.KeywordCount{Keyword: keyword, Count: counts[i]})
		}
	}
	// stable: equal counts keep vocabulary order
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Count > found[j].Count
	})

	frequency := found
	if len(frequency) > keywordFrequencyLimit {
		frequency = frequency[:keywordFrequencyLimit]
	}

	return models.KeywordTrends{
		TotalFound: len(found),
		Frequency:  frequency,
		Trending:   trendingKeywords(found),
	}
}

// trendingKeywords takes the top entries of a frequency-sorted list and keeps
// those seen more than once
func trendingKeywords(sorted []models.KeywordCount) []string {
	trending := make([]string, 0, trendingLimit)
	for i, kc := range sorted {
		if i >= trendingLimit {
			break
		}
		if kc.Count > 1 {
			trending = append(trending, kc.Keyword)
		}
	}
	return trending
}

func analyzeAuthors(posts []models.CleanedPost) models.AuthorTrends {
	byAuthor := make(map[string]*models.AuthorStats)
	for _, post := range posts {
		if post.Author == "" || post.Author == models.DeletedAuthor {
			continue
		}
		stats, ok := byAuthor[post.Author]
		if !ok {
			stats = &models.AuthorStats{Author: post.Author}
			byAuthor[post.Author] = stats
		}
		stats.PostCount++
		stats.TotalScore += post.Score
		stats.TotalComments += post.NumComments
	}

	top := make([]models.AuthorStats, 0)
	for _, stats := range byAuthor {
		if stats.PostCount > 1 {
			stats.AvgScore = float64(stats.TotalScore) / float64(stats.PostCount)
			stats.TotalEngagement = stats.TotalScore + stats.TotalComments
			top = append(top, *stats)
		}
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalEngagement != top[j].TotalEngagement {
			return top[i].TotalEngagement > top[j].TotalEngagement
		}
		return top[i].Author < top[j].Author
	})

	active := len(top)
	if len(top) > topAuthorsLimit {
		top = top[:topAuthorsLimit]
	}

	return models.AuthorTrends{
		TotalUnique: len(byAuthor),
		Active:      active,
		Top:         top,
	}
}

func analyzeSubreddits(posts []models.CleanedPost) models.SubredditTrends {
	bySubreddit := make(map[string]*models.SubredditStats)
	for _, post := range posts {
		if post.Subreddit == "" {
			continue
		}
		stats, ok := bySubreddit[post.Subreddit]
		if !ok {
			stats = &models.SubredditStats{Subreddit: post.Subreddit}
			bySubreddit[post.Subreddit] = stats
		}
		stats.PostCount++
		stats.TotalScore += post.Score
	}

	ranked := make([]models.SubredditStats, 0, len(bySubreddit))
	for _, stats := range bySubreddit {
		stats.AvgScore = float64(stats.TotalScore) / float64(stats.PostCount)
		ranked = append(ranked, *stats)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].Subreddit < ranked[j].Subreddit
	})

	total := len(ranked)
	if len(ranked) > topSubredditsLimit {
		ranked = ranked[:topSubredditsLimit]
	}

	return models.SubredditTrends{Total: total, Performance: ranked}
}

// engagementRatio is comments per point of score; ok is false when score is 0
func engagementRatio(p models.CleanedPost) (float64, bool) {
	if p.Score <= 0 {
		return 0, false
	}
	return float64(p.NumComments) / float64(p.Score), true
}

// IsHighEngagement reports whether a post draws more than one comment per ten points
func IsHighEngagement(p models.CleanedPost) bool {
	ratio, ok := engagementRatio(p)
	return ok && ratio > highEngagementRatio
}

func analyzeEngagement(posts []models.CleanedPost) models.EngagementTrends {
	ratios := make([]float64, 0, len(posts))
	high := make([]models.CleanedPost, 0)

	for _, post := range posts {
		ratio, ok := engagementRatio(post)
		if !ok {
			continue
		}
		ratios = append(ratios, ratio)
		if IsHighEngagement(post) {
			high = append(high, post)
		}
	}

	sort.SliceStable(high, func(i, j int) bool {
		return high[i].NumComments > high[j].NumComments
	})

	result := models.EngagementTrends{
		AvgRatio:    mean(ratios),
		MedianRatio: median(ratios),
		HighCount:   len(high),
		TopPosts:    high,
	}
	if len(high) > topEngagementLimit {
		result.TopPosts = high[:topEngagementLimit]
	}
	return result
}

// analyzeTimeframes sums per-listing means into each timeframe bucket. With
// several subreddits per timeframe the result is not a true average; consumers
// that need one must compute it from TotalPosts themselves.
func analyzeTimeframes(groups models.CleanedGroups, keys []models.GroupKey) map[string]models.TimeframeStats {
	result := make(map[string]models.TimeframeStats)
	for _, key := range keys {
		posts := groups[key]
		stats := result[key.Timeframe]
		stats.TotalPosts += len(posts)

		if len(posts) > 0 {
			var scores, comments int
			for _, p := range posts {
				scores += p.Score
				comments += p.NumComments
			}
			stats.AvgScore += float64(scores) / float64(len(posts))
			stats.AvgComments += float64(comments) / float64(len(posts))
		}
		result[key.Timeframe] = stats
	}
	return result
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
