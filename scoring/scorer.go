package scoring

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	maxQualityScore       = 100.0
	defaultTrendRelevance = 12.0
	defaultFreshness      = 5.0
)

var genericFlairs = map[string]bool{
	"":           true,
	"general":    true,
	"discussion": true,
	"other":      true,
}

// Scorer rates posts on a 0-100 scale from interaction, content, freshness
// and trend relevance
type Scorer struct {
	log *logrus.Logger
	now func() time.Time
}

// NewScorer creates a new quality scorer
func NewScorer(log *logrus.Logger) *Scorer {
	return &Scorer{log: log, now: time.Now}
}

// ScorePosts scores the deduplicated posts against trends computed over the
// full, non-deduplicated corpus, and returns them best first. trends may be nil.
func (s *Scorer) ScorePosts(uniquePosts []models.CleanedPost, trends *models.TrendAggregate) []models.ScoredPost {
	scored := make([]models.ScoredPost, 0, len(uniquePosts))
	for _, post := range uniquePosts {
		scored = append(scored, models.ScoredPost{
			CleanedPost:  post,
			QualityScore: s.Score(post, trends),
		})
	}
	SortByQuality(scored)

	if len(scored) > 0 {
		s.log.WithFields(logrus.Fields{
			"posts":   len(scored),
			"highest": scored[0].QualityScore,
			"lowest":  scored[len(scored)-1].QualityScore,
		}).Info("Quality scoring complete")
	}
	return scored
}

// Score computes the quality score of one post, rounded to two decimals
func (s *Scorer) Score(post models.CleanedPost, trends *models.TrendAggregate) float64 {
	total := interactionScore(post) +
		contentScore(post) +
		freshnessScore(post.CreatedAt, s.now()) +
		trendRelevanceScore(post, trends)
	total = math.Max(0, math.Min(total, maxQualityScore))
	return math.Round(total*100) / 100
}

// SortByQuality orders posts by quality score, highest first. Equal scores
// keep their relative order.
func SortByQuality(posts []models.ScoredPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].QualityScore > posts[j].QualityScore
	})
}

// TopK returns the first k posts of a ranked list
func TopK(ranked []models.ScoredPost, k int) []models.ScoredPost {
	if k < 0 {
		k = 0
	}
	if len(ranked) < k {
		k = len(ranked)
	}
	top := make([]models.ScoredPost, k)
	copy(top, ranked[:k])
	return top
}

// interactionScore rates score, comments and upvote ratio (0-40)
func interactionScore(p models.CleanedPost) float64 {
	score := math.Max(float64(p.Score), 0)
	comments := math.Max(float64(p.NumComments), 0)
	ratio := math.Max(math.Min(p.UpvoteRatio, 1), 0)

	scorePoints := math.Min(15, 5*(1+2*math.Sqrt(score)/100))
	commentPoints := math.Min(15, 5*(1+2*math.Pow(comments, 0.6)/50))

	var ratioPoints float64
	switch {
	case ratio >= 0.9:
		ratioPoints = 10
	case ratio >= 0.8:
		ratioPoints = 8
	case ratio >= 0.7:
		ratioPoints = 6
	case ratio >= 0.6:
		ratioPoints = 4
	default:
		ratioPoints = 2
	}

	return scorePoints + commentPoints + ratioPoints
}

// contentScore rates title length, body length and flair (0-20)
func contentScore(p models.CleanedPost) float64 {
	var titlePoints float64
	switch n := utf8.RuneCountInString(p.Title); {
	case n > 50:
		titlePoints = 8
	case n > 30:
		titlePoints = 6
	case n > 15:
		titlePoints = 4
	default:
		titlePoints = 2
	}

	var bodyPoints float64
	switch n := utf8.RuneCountInString(p.SelfTextPreview); {
	case n > 500:
		bodyPoints = 7
	case n > 200:
		bodyPoints = 5
	case n > 100:
		bodyPoints = 3
	case n > 0:
		bodyPoints = 1
	}

	var flairPoints float64
	if !genericFlairs[strings.ToLower(p.Flair)] {
		flairPoints = 5
	}

	return titlePoints + bodyPoints + flairPoints
}

// freshnessScore rates the post age (0-15); an unknown creation time gets 5
func freshnessScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return defaultFreshness
	}

	hours := now.Sub(createdAt).Hours()
	switch {
	case hours < 2:
		return 15
	case hours < 6:
		return 12
	case hours < 12:
		return 10
	case hours < 24:
		return 8
	case hours < 48:
		return 6
	case hours < 168:
		return 4
	default:
		return 2
	}
}

// trendRelevanceScore rates keyword, author and subreddit relevance (0-25)
func trendRelevanceScore(p models.CleanedPost, trends *models.TrendAggregate) float64 {
	if trends.Empty() {
		return defaultTrendRelevance
	}
	return keywordRelevance(p, trends.Keywords.Trending) +
		authorActivity(p.Author, trends.Authors) +
		subredditActivity(p.Subreddit, trends.Subreddits)
}

func keywordRelevance(p models.CleanedPost, trending []string) float64 {
	if len(trending) > 10 {
		trending = trending[:10]
	}

	text := strings.ToLower(p.Title + " " + p.SelfTextPreview)
	matches := 0
	for _, keyword := range trending {
		if strings.Contains(text, strings.ToLower(keyword)) {
			matches++
		}
	}

	switch {
	case matches >= 3:
		return 10
	case matches == 2:
		return 8
	case matches == 1:
		return 5
	default:
		return 0
	}
}

func authorActivity(author string, authors models.AuthorTrends) float64 {
	rank := authors.Rank(author)
	switch {
	case rank == 0:
		return 0
	case rank <= 3:
		return 8
	case rank <= 5:
		return 6
	case rank <= 10:
		return 4
	default:
		return 2
	}
}

func subredditActivity(subreddit string, subreddits models.SubredditTrends) float64 {
	stats, ok := subreddits.Lookup(subreddit)
	if !ok {
		return 2
	}
	switch {
	case stats.AvgScore > 100:
		return 7
	case stats.AvgScore > 50:
		return 5
	case stats.AvgScore > 20:
		return 3
	default:
		return 1
	}
}
