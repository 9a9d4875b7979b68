package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/cleaner"
	"github.com/brettboylen/reddit-trends/models"
)

// Searcher runs a keyword search
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) ([]*models.RawPost, error)
}

// Search runs q and cleans the results, keeping posts with at least
// q.MinScore points and q.MinComments comments, highest score first.
func Search(ctx context.Context, searcher Searcher, q models.SearchQuery, log *logrus.Logger) ([]models.CleanedPost, error) {
	raws, err := searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	key := models.GroupKey{Timeframe: q.Timeframe, Subreddit: "all"}
	if key.Timeframe == "" {
		key.Timeframe = models.TimeframeWeek
	}
	if len(q.Subreddits) > 0 {
		key.Subreddit = strings.Join(q.Subreddits, "+")
	}

	groups, stats, err := cleaner.NewCleaner(log).Clean(models.RawGroups{key: raws})
	if err != nil {
		return nil, err
	}

	posts := make([]models.CleanedPost, 0, len(groups[key]))
	for _, p := range groups[key] {
		if p.Score >= q.MinScore && p.NumComments >= q.MinComments {
			posts = append(posts, p)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Score > posts[j].Score
	})

	log.WithFields(logrus.Fields{
		"query":    strings.Join(q.Keywords, " "),
		"fetched":  stats.Total,
		"valid":    stats.Valid,
		"returned": len(posts),
	}).Info("Search complete")

	return posts, nil
}
