package cleaner

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	maxTitleLength     = 300
	maxPreviewLength   = 500
	minTitleLength     = 10
	defaultUpvoteRatio = 0.5
)

// ErrCorruptInput is returned when the grouped input cannot be processed at all
var ErrCorruptInput = errors.New("corrupt cleaner input")

type outcome int

const (
	outcomeValid outcome = iota
	outcomeInvalid
	outcomeFiltered
)

// Cleaner validates, filters and normalizes raw posts
type Cleaner struct {
	log *logrus.Logger
}

// NewCleaner creates a new cleaner
func NewCleaner(log *logrus.Logger) *Cleaner {
	return &Cleaner{log: log}
}

// Clean processes every group and returns the cleaned groups with the run's
// counters. A bad record never aborts the batch; it is counted and skipped.
func (c *Cleaner) Clean(groups models.RawGroups) (models.CleanedGroups, models.CleaningStats, error) {
	if groups == nil {
		return nil, models.CleaningStats{}, fmt.Errorf("%w: nil group mapping", ErrCorruptInput)
	}

	keys := make([]models.GroupKey, 0, len(groups))
	for key := range groups {
		if key.Timeframe == "" || key.Subreddit == "" {
			return nil, models.CleaningStats{}, fmt.Errorf("%w: malformed group key %q", ErrCorruptInput, key.String())
		}
		keys = append(keys, key)
	}
	models.SortGroupKeys(keys)

	c.log.WithField("groups", len(groups)).Info("Cleaning posts")

	cleaned := make(models.CleanedGroups, len(groups))
	var stats models.CleaningStats

	for _, key := range keys {
		posts := make([]models.CleanedPost, 0, len(groups[key]))
		for _, raw := range groups[key] {
			post, result, reason := cleanPost(raw, key)
			stats = stats.Add(tally(result))

			switch result {
			case outcomeValid:
				posts = append(posts, post)
			case outcomeInvalid:
				entry := c.log.WithFields(logrus.Fields{"group": key.String(), "reason": reason})
				if raw == nil {
					entry.Error("Skipping nil post")
				} else {
					entry.WithField("id", raw.ID).Debug("Post failed validation")
				}
			case outcomeFiltered:
				c.log.WithFields(logrus.Fields{
					"group":  key.String(),
					"id":     raw.ID,
					"reason": reason,
				}).Debug("Post removed by quality filter")
			}
		}
		cleaned[key] = posts
	}

	rates := stats.Rates()
	c.log.WithFields(logrus.Fields{
		"total":        stats.Total,
		"valid":        stats.Valid,
		"invalid":      stats.Invalid,
		"filtered":     stats.Filtered,
		"valid_rate":   fmt.Sprintf("%.1f%%", rates.ValidRate),
		"filter_rate":  fmt.Sprintf("%.1f%%", rates.FilterRate),
		"invalid_rate": fmt.Sprintf("%.1f%%", rates.InvalidRate),
	}).Info("Cleaning complete")

	return cleaned, stats, nil
}

func tally(result outcome) models.CleaningStats {
	s := models.CleaningStats{Total: 1}
	switch result {
	case outcomeValid:
		s.Valid = 1
	case outcomeInvalid:
		s.Invalid = 1
	case outcomeFiltered:
		s.Filtered = 1
	}
	return s
}

// cleanPost runs validation, the quality filter and normalization for one record
func cleanPost(raw *models.RawPost, key models.GroupKey) (models.CleanedPost, outcome, string) {
	if raw == nil {
		return models.CleanedPost{}, outcomeInvalid, "nil post"
	}
	if reason := validate(raw); reason != "" {
		return models.CleanedPost{}, outcomeInvalid, reason
	}
	if reason := qualityFilter(raw); reason != "" {
		return models.CleanedPost{}, outcomeFiltered, reason
	}

	post, err := normalize(raw)
	if err != nil {
		return models.CleanedPost{}, outcomeInvalid, err.Error()
	}
	post.SourceTimeframe = key.Timeframe
	return post, outcomeValid, ""
}

// validate returns a rejection reason, or "" when the record is structurally sound
func validate(raw *models.RawPost) string {
	switch {
	case raw.ID == "":
		return "missing id"
	case raw.Title == "":
		return "missing title"
	case raw.Subreddit == "":
		return "missing subreddit"
	case isFalsy(raw.CreatedUTC):
		return "missing created_utc"
	}

	if _, err := toTime(raw.CreatedUTC); err != nil {
		return fmt.Sprintf("bad created_utc: %v", err)
	}
	if raw.Score != nil {
		if _, err := toFloat(raw.Score); err != nil {
			return fmt.Sprintf("bad score: %v", err)
		}
	}
	if raw.NumComments != nil {
		if _, err := toFloat(raw.NumComments); err != nil {
			return fmt.Sprintf("bad num_comments: %v", err)
		}
	}
	return ""
}

// qualityFilter returns a rejection reason, or "" when the post is kept
func qualityFilter(raw *models.RawPost) string {
	if raw.Author == models.DeletedAuthor && raw.Title == "" {
		return "deleted post"
	}

	if raw.Score != nil {
		score, _ := toFloat(raw.Score)
		if score < 0 {
			return "negative score"
		}
	}

	if utf8.RuneCountInString(collapseWhitespace(raw.Title)) < minTitleLength {
		return "title too short"
	}
	return ""
}

// normalize builds the cleaned post from a validated record
func normalize(raw *models.RawPost) (models.CleanedPost, error) {
	createdAt, err := toTime(raw.CreatedUTC)
	if err != nil {
		return models.CleanedPost{}, fmt.Errorf("normalize created_utc: %w", err)
	}

	score, err := nonNegativeInt(raw.Score)
	if err != nil {
		return models.CleanedPost{}, fmt.Errorf("normalize score: %w", err)
	}
	comments, err := nonNegativeInt(raw.NumComments)
	if err != nil {
		return models.CleanedPost{}, fmt.Errorf("normalize num_comments: %w", err)
	}

	ratio := defaultUpvoteRatio
	if raw.UpvoteRatio != nil {
		ratio, err = toFloat(raw.UpvoteRatio)
		if err != nil {
			return models.CleanedPost{}, fmt.Errorf("normalize upvote_ratio: %w", err)
		}
		ratio = math.Max(0, math.Min(1, ratio))
	}

	return models.CleanedPost{
		ID:              raw.ID,
		Title:           truncate(collapseWhitespace(raw.Title), maxTitleLength),
		Author:          raw.Author,
		Subreddit:       raw.Subreddit,
		Score:           score,
		NumComments:     comments,
		UpvoteRatio:     ratio,
		CreatedAt:       createdAt,
		SelfTextPreview: truncate(collapseWhitespace(raw.SelfTextPreview), maxPreviewLength),
		URL:             raw.URL,
		Permalink:       raw.Permalink,
		Flair:           raw.Flair,
		IsSelf:          raw.IsSelf,
		Stickied:        raw.Stickied,
		Locked:          raw.Locked,
	}, nil
}

// nonNegativeInt truncates a numeric value toward zero and clamps it to
// [0, math.MaxInt]. A missing value is 0.
func nonNegativeInt(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	switch {
	case f < 0:
		return 0, nil
	case f >= math.MaxInt:
		return math.MaxInt, nil
	}
	return int(f), nil
}
