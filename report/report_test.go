package report

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/reddit-trends/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sampleReport() *models.Report {
	started := time.Date(2025, 3, 7, 9, 5, 1, 0, time.UTC)
	hot := models.CleanedPost{
		ID: "a", Title: "Open weights model tops the leaderboard", Author: "alice",
		Subreddit: "LocalLLaMA", Score: 900, NumComments: 300, UpvoteRatio: 0.95,
		Permalink: "https://reddit.com/r/LocalLLaMA/comments/a/",
	}
	second := models.ScoredPost{
		CleanedPost:  models.CleanedPost{ID: "b", Title: "Agents in production", Author: "bob", Subreddit: "OpenAI"},
		QualityScore: 61.5,
	}
	second.SetSummaryError(errors.New("rate limited"))

	first := models.ScoredPost{CleanedPost: hot, QualityScore: 88.25}
	first.SetSummary("A new open model leads the benchmark.")

	return &models.Report{
		RunID:       "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
		Subreddits:  []string{"LocalLLaMA", "OpenAI"},
		Cleaning:    models.CleaningStats{Total: 10, Valid: 8, Invalid: 1, Filtered: 1},
		Rates:       models.CleaningStats{Total: 10, Valid: 8, Invalid: 1, Filtered: 1}.Rates(),
		UniquePosts: 6,
		Rankings:    models.TimeframeRankings{Hot: []models.CleanedPost{hot}},
		Trends: &models.TrendAggregate{
			PostCount: 8,
			Keywords: models.KeywordTrends{
				TotalFound: 2,
				Frequency:  []models.KeywordCount{{Keyword: "llm", Count: 4}, {Keyword: "agent", Count: 2}},
				Trending:   []string{"llm", "agent"},
			},
			Authors: models.AuthorTrends{TotalUnique: 5, Active: 1, Top: []models.AuthorStats{
				{Author: "alice", PostCount: 2, AvgScore: 500, TotalEngagement: 1300},
			}},
			Subreddits: models.SubredditTrends{Total: 2, Performance: []models.SubredditStats{
				{Subreddit: "LocalLLaMA", PostCount: 5, TotalScore: 2000, AvgScore: 400},
			}},
			Timeframes: map[string]models.TimeframeStats{"hot": {TotalPosts: 8, AvgScore: 120.5, AvgComments: 30}},
		},
		Top: []models.ScoredPost{first, second},
		Details: []*models.DetailedPost{{
			ID: "a", Title: hot.Title, Author: "alice", Subreddit: "LocalLLaMA",
			Content:  "Full   body\nof the post",
			Comments: []models.Comment{{Author: "carol", Body: "great", Score: 12}},
		}},
	}
}

func TestRender(t *testing.T) {
	out, err := Render(sampleReport())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "**Run ID:** run-1")
	assert.Contains(t, md, "**Subreddits:** LocalLLaMA, OpenAI")
	assert.Contains(t, md, "| Valid | 8 | 80.0% |")
	assert.Contains(t, md, "Unique posts after deduplication: **6**")
	assert.Contains(t, md, "1. [Open weights model tops the leaderboard](https://reddit.com/r/LocalLLaMA/comments/a/) r/LocalLLaMA (900 points, 300 comments)")
	assert.Contains(t, md, "### 1. Open weights model tops the leaderboard")
	assert.Contains(t, md, "**Quality score:** 88.25")
	assert.Contains(t, md, "> A new open model leads the benchmark.")
	assert.Contains(t, md, "_Summary unavailable: rate limited_")
	assert.Contains(t, md, "Trending: llm, agent")
	assert.Contains(t, md, "| llm | 4 |")
	assert.Contains(t, md, "| u/alice | 2 | 500.0 | 1300 |")
	assert.Contains(t, md, "| hot | 8 | 120.5 | 30.0 |")
	assert.Contains(t, md, "Full body of the post")
	assert.Contains(t, md, "- **u/carol** (12): great")
}

func TestRenderEmptyReport(t *testing.T) {
	out, err := Render(&models.Report{RunID: "empty"})
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "_No posts passed cleaning._")
	assert.Contains(t, md, "_No trend data._")
	assert.Contains(t, md, "_No details fetched._")
	assert.Equal(t, 3, strings.Count(md, "_No posts._"))

	_, err = Render(nil)
	assert.Error(t, err)
}

func TestWriterWritesDatedAndLatest(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	path, err := w.Write(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "03", "07", "report_20250307_090501.md"), path)

	dated, err := os.ReadFile(path)
	require.NoError(t, err)
	latest, err := os.ReadFile(filepath.Join(dir, latestFileName))
	require.NoError(t, err)
	assert.Equal(t, dated, latest)
}

func TestHTML(t *testing.T) {
	out, err := Render(sampleReport())
	require.NoError(t, err)

	page, err := HTML(out)
	require.NoError(t, err)
	html := string(page)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<h1>Reddit AI Trends Report</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<blockquote>")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt("  a \n b ", 10))
	assert.Equal(t, "abc...", excerpt("abcdef", 3))
}
