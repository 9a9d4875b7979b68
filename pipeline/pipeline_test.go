package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
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

func rawPost(id, title string, score, comments int) *models.RawPost {
	return &models.RawPost{
		ID:          id,
		Title:       title,
		Author:      "author-" + id,
		Subreddit:   "LocalLLaMA",
		Score:       float64(score),
		NumComments: float64(comments),
		UpvoteRatio: 0.9,
		CreatedUTC:  float64(time.Now().Add(-2 * time.Hour).Unix()),
	}
}

type fakeSource struct {
	mu         sync.Mutex
	groups     models.RawGroups
	err        error
	detailIDs  []string
	detailCall int
}

func (f *fakeSource) Collect(ctx context.Context) (models.RawGroups, error) {
	return f.groups, f.err
}

func (f *fakeSource) FetchDetails(ctx context.Context, ids []string, depth int) []*models.DetailedPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCall++
	f.detailIDs = append([]string(nil), ids...)
	details := make([]*models.DetailedPost, 0, len(ids))
	for _, id := range ids {
		details = append(details, &models.DetailedPost{ID: id})
	}
	return details
}

// reverseSummaries returns posts in reverse order to mimic completion order
type reverseSummaries struct{}

func (reverseSummaries) Summarize(ctx context.Context, posts []models.ScoredPost) []models.ScoredPost {
	out := make([]models.ScoredPost, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		if p.ID == "b" {
			p.SetSummaryError(errors.New("rate limited"))
		} else {
			p.SetSummary("summary " + p.ID)
		}
		out = append(out, p)
	}
	return out
}

func sampleGroups() models.RawGroups {
	hot := models.GroupKey{Timeframe: models.TimeframeHot, Subreddit: "LocalLLaMA"}
	week := models.GroupKey{Timeframe: models.TimeframeWeek, Subreddit: "LocalLLaMA"}
	return models.RawGroups{
		hot: {
			rawPost("a", "New open weights LLM beats GPT on reasoning", 900, 300),
			rawPost("b", "Building an agent with RAG and embeddings", 400, 120),
			rawPost("c", "short", 50, 1),
			nil,
		},
		week: {
			rawPost("a", "New open weights LLM beats GPT on reasoning", 2000, 600),
			rawPost("d", "Weekly discussion thread for local models", 150, 40),
		},
	}
}

func TestRun(t *testing.T) {
	source := &fakeSource{groups: sampleGroups()}
	p := New(source, reverseSummaries{}, Options{TopK: 2, RankingTopK: 10, DetailDepth: 2}, testLogger())

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, models.CleaningStats{Total: 6, Valid: 4, Invalid: 1, Filtered: 1}, report.Cleaning)
	assert.Equal(t, 3, report.UniquePosts)
	assert.Equal(t, 4, report.Trends.PostCount)

	require.Len(t, report.Top, 2)
	assert.GreaterOrEqual(t, report.Top[0].QualityScore, report.Top[1].QualityScore)
	for _, post := range report.Top {
		hasSummary := post.Summary != nil
		hasError := post.SummaryError != nil
		assert.True(t, hasSummary != hasError, post.ID)
	}

	// the hot copy of "a" wins deduplication under the default policy
	for _, post := range report.Top {
		if post.ID == "a" {
			assert.Equal(t, 900, post.Score)
		}
	}

	require.Len(t, report.Details, 2)
	assert.Equal(t, []string{report.Top[0].ID, report.Top[1].ID}, source.detailIDs)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRunWithoutSummaries(t *testing.T) {
	p := New(&fakeSource{groups: sampleGroups()}, nil, Options{TopK: 5, RankingTopK: 10}, testLogger())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Top, 3)
	for _, post := range report.Top {
		assert.Nil(t, post.Summary)
		assert.Nil(t, post.SummaryError)
	}
}

func TestRunCollectFailure(t *testing.T) {
	p := New(&fakeSource{err: errors.New("reddit down")}, nil, Options{TopK: 5}, testLogger())

	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "collect: reddit down")
}

func TestRunCorruptInput(t *testing.T) {
	source := &fakeSource{groups: models.RawGroups{{Timeframe: "", Subreddit: "x"}: nil}}
	p := New(source, nil, Options{TopK: 5}, testLogger())

	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "clean:")
}

func TestRunEmptyCorpus(t *testing.T) {
	source := &fakeSource{groups: models.RawGroups{}}
	p := New(source, reverseSummaries{}, Options{TopK: 5, RankingTopK: 10}, testLogger())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Top)
	assert.True(t, report.Trends.Empty())
	assert.Empty(t, report.Details)
}

func TestStartDeliversReports(t *testing.T) {
	p := New(&fakeSource{groups: sampleGroups()}, nil, Options{TopK: 1, RankingTopK: 5}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan *models.Report, 4)

	done := make(chan error, 1)
	go func() {
		done <- p.Start(ctx, 10*time.Millisecond, func(r *models.Report) {
			select {
			case reports <- r:
			default:
			}
		})
	}()

	first := <-reports
	second := <-reports
	cancel()

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.ErrorIs(t, <-done, context.Canceled)
}
