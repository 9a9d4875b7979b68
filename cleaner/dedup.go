package cleaner

import (
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/models"
)

// Deduplication policies
const (
	PolicyHighestHot = "highest_hot"
	PolicyFirst      = "first"
	PolicyLast       = "last"
	PolicyMaxScore   = "max_score"
)

// ValidPolicy reports whether policy names a known deduplication policy.
// The empty string selects the default.
func ValidPolicy(policy string) bool {
	switch policy {
	case "", PolicyHighestHot, PolicyFirst, PolicyLast, PolicyMaxScore:
		return true
	}
	return false
}

// Deduplicate collapses posts collected under several listings into one post
// per id. Groups are walked in stable key order, so "first" and "last" are
// deterministic; any unknown policy falls back to the highest score.
func (c *Cleaner) Deduplicate(groups models.CleanedGroups, policy string) []models.CleanedPost {
	if policy == "" {
		policy = PolicyHighestHot
	}

	byID := make(map[string][]models.CleanedPost)
	order := make([]string, 0)
	total := 0

	for _, key := range groups.Keys() {
		for _, post := range groups[key] {
			post.SourceTimeframe = key.Timeframe
			if _, seen := byID[post.ID]; !seen {
				order = append(order, post.ID)
			}
			byID[post.ID] = append(byID[post.ID], post)
			total++
		}
	}

	unique := make([]models.CleanedPost, 0, len(order))
	for _, id := range order {
		unique = append(unique, selectPost(byID[id], policy))
	}

	c.log.WithFields(logrus.Fields{
		"policy": policy,
		"before": total,
		"after":  len(unique),
	}).Info("Deduplication complete")

	return unique
}

func selectPost(group []models.CleanedPost, policy string) models.CleanedPost {
	switch policy {
	case PolicyFirst:
		return group[0]
	case PolicyLast:
		return group[len(group)-1]
	case PolicyHighestHot:
		hot := make([]models.CleanedPost, 0, len(group))
		for _, post := range group {
			if post.SourceTimeframe == models.TimeframeHot {
				hot = append(hot, post)
			}
		}
		if len(hot) > 0 {
			return maxScore(hot)
		}
		return maxScore(group)
	default:
		return maxScore(group)
	}
}

// maxScore returns the highest scoring post; the earliest wins a tie
func maxScore(group []models.CleanedPost) models.CleanedPost {
	best := group[0]
	for _, post := range group[1:] {
		if post.Score > best.Score {
			best = post
		}
	}
	return best
}
