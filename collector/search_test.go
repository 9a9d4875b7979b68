package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/reddit-trends/models"
)

type fakeSearcher struct {
	posts []*models.RawPost
	err   error
	got   models.SearchQuery
}

func (f *fakeSearcher) Search(ctx context.Context, q models.SearchQuery) ([]*models.RawPost, error) {
	f.got = q
	return f.posts, f.err
}

func searchPost(id string, score, comments float64) *models.RawPost {
	return &models.RawPost{
		ID:          id,
		Title:       "Searching for agent frameworks",
		Subreddit:   "LocalLLaMA",
		Score:       score,
		NumComments: comments,
		CreatedUTC:  1700000000.0,
	}
}

func TestSearchFiltersAndSortsByScore(t *testing.T) {
	searcher := &fakeSearcher{posts: []*models.RawPost{
		searchPost("low", 4, 10),
		searchPost("quiet", 50, 2),
		searchPost("mid", 20, 3),
		nil,
		searchPost("top", 90, 40),
		searchPost("also-mid", 20, 8),
	}}
	q := models.SearchQuery{
		Keywords:    []string{"agent"},
		Subreddits:  []string{"LocalLLaMA", "OpenAI"},
		MinScore:    5,
		MinComments: 3,
	}

	posts, err := Search(context.Background(), searcher, q, testLogger())
	require.NoError(t, err)

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		assert.Equal(t, models.TimeframeWeek, p.SourceTimeframe)
	}
	assert.Equal(t, []string{"top", "mid", "also-mid"}, ids)
	assert.Equal(t, q, searcher.got)
}

func TestSearchWithoutMinimumsKeepsCleanPosts(t *testing.T) {
	searcher := &fakeSearcher{posts: []*models.RawPost{searchPost("a", 0, 0), searchPost("b", -3, 1)}}

	posts, err := Search(context.Background(), searcher, models.SearchQuery{Keywords: []string{"rag"}, Timeframe: "all"}, testLogger())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "a", posts[0].ID)
	assert.Equal(t, "all", posts[0].SourceTimeframe)
}

func TestSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("403")}
	_, err := Search(context.Background(), searcher, models.SearchQuery{Keywords: []string{"llm"}}, testLogger())
	assert.ErrorContains(t, err, "search failed")
}
