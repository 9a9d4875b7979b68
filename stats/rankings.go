package stats

import (
	"sort"

	"github.com/brettboylen/reddit-trends/models"
)

// Rankings builds the per-timeframe leaderboards. Hot and day listings are
// merged into the hot board and keep their collection order, since Reddit
// already sorts them by hotness; week and month boards are sorted by score.
func Rankings(groups models.CleanedGroups, topK int) models.TimeframeRankings {
	var hot, week, month []models.CleanedPost

	for _, key := range groups.Keys() {
		switch key.Timeframe {
		case models.TimeframeHot, models.TimeframeDay:
			hot = append(hot, groups[key]...)
		case models.TimeframeWeek:
			week = append(week, groups[key]...)
		case models.TimeframeMonth:
			month = append(month, groups[key]...)
		}
	}

	return models.TimeframeRankings{
		Hot:   limit(hot, topK),
		Week:  limit(byScore(week), topK),
		Month: limit(byScore(month), topK),
	}
}

func byScore(posts []models.CleanedPost) []models.CleanedPost {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Score > posts[j].Score
	})
	return posts
}

func limit(posts []models.CleanedPost, n int) []models.CleanedPost {
	if posts == nil {
		return []models.CleanedPost{}
	}
	if n >= 0 && len(posts) > n {
		return posts[:n]
	}
	return posts
}
