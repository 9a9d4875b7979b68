package models

import "time"

// Report is the outcome of one pipeline run
type Report struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Subreddits  []string          `json:"subreddits"`
	Cleaning    CleaningStats     `json:"cleaning"`
	Rates       CleaningRates     `json:"rates"`
	Trends      *TrendAggregate   `json:"trends"`
	Rankings    TimeframeRankings `json:"rankings"`
	UniquePosts int               `json:"unique_posts"`
	Top         []ScoredPost      `json:"top"`
	Details     []*DetailedPost   `json:"details"`
}

// Duration is how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summarized counts the top posts that received a summary
func (r *Report) Summarized() int {
	n := 0
	for _, p := range r.Top {
		if p.Summary != nil {
			n++
		}
	}
	return n
}
