package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brettboylen/reddit-trends/models"
)

const defaultDetailWorkers = 3

// ErrNothingCollected is returned when every listing fetch failed
var ErrNothingCollected = errors.New("no listings could be collected")

// ListingFetcher fetches one timeframe listing of a subreddit
type ListingFetcher interface {
	FetchListing(ctx context.Context, subreddit, timeframe string, limit int) ([]*models.RawPost, error)
}

// DetailFetcher fetches a post with its comment tree
type DetailFetcher interface {
	FetchDetail(ctx context.Context, postID string, depth int) (*models.DetailedPost, error)
}

// Collector gathers raw listings for every (timeframe, subreddit) pair
type Collector struct {
	listings      ListingFetcher
	details       DetailFetcher
	subreddits    []models.SubredditConfig
	detailWorkers int
	log           *logrus.Logger
}

// NewCollector creates a new collector
func NewCollector(
	listings ListingFetcher,
	details DetailFetcher,
	subreddits []models.SubredditConfig,
	detailWorkers int,
	log *logrus.Logger,
) *Collector {
	if detailWorkers <= 0 {
		detailWorkers = defaultDetailWorkers
	}
	return &Collector{
		listings:      listings,
		details:       details,
		subreddits:    subreddits,
		detailWorkers: detailWorkers,
		log:           log,
	}
}

// ListingLimit returns how many posts to request for a timeframe given a
// subreddit's base limit
func ListingLimit(timeframe string, base int) int {
	switch timeframe {
	case models.TimeframeDay:
		return max(10, base/2)
	case models.TimeframeWeek:
		return max(15, base/2)
	default:
		return base
	}
}

// Collect fetches every timeframe of every subreddit concurrently. A failed
// listing is logged and left out; the run only fails when nothing at all
// could be fetched or the context is cancelled.
func (c *Collector) Collect(ctx context.Context) (models.RawGroups, error) {
	start := time.Now()
	c.log.WithField("subreddits", len(c.subreddits)).Info("Collecting listings from all subreddits")

	groups := make(models.RawGroups, len(c.subreddits)*len(models.Timeframes))
	var mutex sync.Mutex
	var wg sync.WaitGroup
	errorsCh := make(chan error, len(c.subreddits)*len(models.Timeframes))

	for _, sr := range c.subreddits {
		for _, timeframe := range models.Timeframes {
			wg.Add(1)
			go func() {
				defer wg.Done()

				key := models.GroupKey{Timeframe: timeframe, Subreddit: sr.Name}
				limit := ListingLimit(timeframe, sr.Limit)

				posts, err := c.listings.FetchListing(ctx, sr.Name, timeframe, limit)
				if err != nil {
					errorsCh <- fmt.Errorf("failed to fetch %s: %w", key, err)
					return
				}

				c.log.WithFields(logrus.Fields{
					"group": key.String(),
					"count": len(posts),
					"limit": limit,
				}).Debug("Fetched listing")

				mutex.Lock()
				groups[key] = posts
				mutex.Unlock()
			}()
		}
	}

	wg.Wait()
	close(errorsCh)

	failed := 0
	for err := range errorsCh {
		failed++
		c.log.WithError(err).Error("Skipping listing")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 && failed > 0 {
		return nil, ErrNothingCollected
	}

	total := 0
	for _, posts := range groups {
		total += len(posts)
	}
	c.log.WithFields(logrus.Fields{
		"groups":   len(groups),
		"failed":   failed,
		"posts":    total,
		"duration": time.Since(start).String(),
	}).Info("Collection complete")

	return groups, nil
}

// FetchDetails fetches post details for ids with a bounded pool. Failed ids
// are logged and dropped; the result keeps the order of ids.
func (c *Collector) FetchDetails(ctx context.Context, ids []string, depth int) []*models.DetailedPost {
	if c.details == nil || len(ids) == 0 {
		return []*models.DetailedPost{}
	}

	results := make([]*models.DetailedPost, len(ids))
	var g errgroup.Group
	g.SetLimit(c.detailWorkers)

	for i, id := range ids {
		g.Go(func() error {
			detail, err := c.details.FetchDetail(ctx, id, depth)
			if err != nil {
				c.log.WithError(err).WithField("id", id).Error("Failed to fetch post details")
				return nil
			}
			results[i] = detail
			return nil
		})
	}
	g.Wait()

	details := make([]*models.DetailedPost, 0, len(ids))
	for _, d := range results {
		if d != nil {
			details = append(details, d)
		}
	}

	c.log.WithFields(logrus.Fields{
		"requested": len(ids),
		"fetched":   len(details),
	}).Info("Fetched post details")

	return details
}
