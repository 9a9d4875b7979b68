package api

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/brettboylen/reddit-trends/models"
)

func TestGetHeaderAsInt(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string][]string
		key      string
		expected int
	}{
		{
			name: "Valid integer header",
			headers: map[string][]string{
				"X-Ratelimit-Remaining": {"42"},
			},
			key:      "X-Ratelimit-Remaining",
			expected: 42,
		},
		{
			name: "Fractional header value",
			headers: map[string][]string{
				"X-Ratelimit-Remaining": {"95.0"},
			},
			key:      "X-Ratelimit-Remaining",
			expected: 95,
		},
		{
			name: "Missing header",
			headers: map[string][]string{
				"X-Ratelimit-Used": {"10"},
			},
			key:      "X-Ratelimit-Remaining",
			expected: 0,
		},
		{
			name: "Non-numeric header value",
			headers: map[string][]string{
				"X-Ratelimit-Remaining": {"not-a-number"},
			},
			key:      "X-Ratelimit-Remaining",
			expected: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := getHeaderAsInt(http.Header(tc.headers), tc.key)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestLimiterUsesFractionOfAllowance(t *testing.T) {
	r := NewRedditAPI("id", "secret", "ua", 600, testLogger())
	assert.InDelta(t, 600.0/60.0*0.95, float64(r.limiter.Limit()), 1e-9)

	r = NewRedditAPI("id", "secret", "ua", 0, testLogger())
	assert.InDelta(t, 100.0/60.0*0.95, float64(r.limiter.Limit()), 1e-9)
}

const listingBody = `{"kind":"Listing","data":{"after":null,"children":[
  {"kind":"t3","data":{"id":"abc","title":"New agent framework released","author":"alice",
   "subreddit":"LocalLLaMA","score":120,"upvote_ratio":0.93,"num_comments":42,
   "created_utc":1700000000.0,"selftext":"body text","url":"https://example.com",
   "permalink":"/r/LocalLLaMA/comments/abc/x/","link_flair_text":"News","is_self":true}},
  {"kind":"t3","data":{"id":"def","title":"Deleted author post","author":"",
   "subreddit":"LocalLLaMA","score":"7","upvote_ratio":null,"num_comments":1,
   "created_utc":1700000100,"selftext":"","permalink":"/r/LocalLLaMA/comments/def/y/","link_flair_text":null}},
  {"kind":"more","data":{}}
]}}`

const threadBody = `[
 {"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"abc","title":"Thread","author":"alice",
   "subreddit":"LocalLLaMA","score":10,"upvote_ratio":0.9,"num_comments":3,"created_utc":1700000000,
   "selftext":"full body","permalink":"/r/LocalLLaMA/comments/abc/x/"}}]}},
 {"kind":"Listing","data":{"children":[
   {"kind":"t1","data":{"id":"c1","author":"bob","body":"top comment","score":5,"created_utc":1700000050,
     "replies":{"kind":"Listing","data":{"children":[
       {"kind":"t1","data":{"id":"r1","author":"alice","body":"reply","score":2,"is_submitter":true,"replies":""}}
     ]}}}},
   {"kind":"t1","data":{"id":"c2","author":"carol","body":"[deleted]","score":1,"replies":""}},
   {"kind":"t1","data":{"id":"c3","author":"dave","body":"second","score":1,"replies":""}},
   {"kind":"more","data":{"count":10}}
 ]}}
]`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) *RedditAPI {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		w.Write([]byte(`{"access_token":"tok","expires_in":3600,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "ua/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("X-Ratelimit-Used", "3")
		w.Header().Set("X-Ratelimit-Remaining", "97.0")
		w.Header().Set("X-Ratelimit-Reset", "540")
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	r := NewRedditAPI("id", "secret", "ua/1.0", 100, testLogger())
	r.baseURL = server.URL
	r.authURL = server.URL + "/auth"
	r.limiter = rate.NewLimiter(rate.Inf, 1)
	return r
}

func TestFetchListingHot(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/r/LocalLLaMA/hot.json", req.URL.Path)
		assert.Equal(t, "50", req.URL.Query().Get("limit"))
		assert.Empty(t, req.URL.Query().Get("t"))
		w.Write([]byte(listingBody))
	})

	posts, err := r.FetchListing(context.Background(), "LocalLLaMA", models.TimeframeHot, 50)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	first := posts[0]
	assert.Equal(t, "abc", first.ID)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, 120.0, first.Score)
	assert.Equal(t, 0.93, first.UpvoteRatio)
	assert.Equal(t, 1700000000.0, first.CreatedUTC)
	assert.Equal(t, "https://reddit.com/r/LocalLLaMA/comments/abc/x/", first.Permalink)
	assert.Equal(t, "News", first.Flair)
	assert.Equal(t, "body text", first.SelfTextPreview)

	second := posts[1]
	assert.Equal(t, models.DeletedAuthor, second.Author)
	assert.Equal(t, "7", second.Score)
	assert.Nil(t, second.UpvoteRatio)
	assert.Empty(t, second.Flair)

	remaining, reset, used := r.GetRateLimitStatus()
	assert.Equal(t, 97, remaining)
	assert.Equal(t, 540, reset)
	assert.Equal(t, 3, used)
}

func TestFetchListingTop(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/r/OpenAI/top.json", req.URL.Path)
		assert.Equal(t, "week", req.URL.Query().Get("t"))
		w.Write([]byte(`{"kind":"Listing","data":{"children":[]}}`))
	})

	posts, err := r.FetchListing(context.Background(), "OpenAI", models.TimeframeWeek, 20)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFetchListingErrors(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"reason":"private"}`))
	})

	_, err := r.FetchListing(context.Background(), "private", models.TimeframeHot, 10)
	assert.ErrorContains(t, err, "403")

	_, err = r.FetchListing(context.Background(), "x", "decade", 10)
	assert.ErrorContains(t, err, "unsupported timeframe")
}

func TestPreviewIsTruncated(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'ж'
	}
	raw := postData{ID: "a", SelfText: string(long)}.toRawPost()
	assert.Equal(t, string(long[:previewLength]), raw.SelfTextPreview)
}

func TestFetchComments(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/comments/abc.json", req.URL.Path)
		assert.Equal(t, "top", req.URL.Query().Get("sort"))
		w.Write([]byte(threadBody))
	})

	comments, err := r.FetchComments(context.Background(), "abc", 5)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "top comment", comments[0].Body)
	assert.Empty(t, comments[0].Replies)
	assert.Equal(t, "second", comments[1].Body)
}

func TestFetchDetail(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "2", req.URL.Query().Get("depth"))
		w.Write([]byte(threadBody))
	})

	detail, err := r.FetchDetail(context.Background(), "abc", 2)
	require.NoError(t, err)
	assert.Equal(t, "full body", detail.Content)
	assert.Equal(t, 10, detail.Score)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), detail.CreatedAt)
	assert.False(t, detail.CollectedAt.IsZero())

	require.Len(t, detail.Comments, 2)
	require.Len(t, detail.Comments[0].Replies, 1)
	reply := detail.Comments[0].Replies[0]
	assert.Equal(t, "reply", reply.Body)
	assert.True(t, reply.IsSubmitter)
}

func TestFetchDetailMissingPost(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`[{"kind":"Listing","data":{"children":[]}},{"kind":"Listing","data":{"children":[]}}]`))
	})

	_, err := r.FetchDetail(context.Background(), "gone", 1)
	assert.ErrorContains(t, err, "not found")
}

func TestDetailClampsHugeCounts(t *testing.T) {
	detail := postData{ID: "a", Score: 1e19, NumComments: 1e30}.toDetailedPost()
	assert.Equal(t, math.MaxInt, detail.Score)
	assert.Equal(t, math.MaxInt, detail.NumComments)

	detail = postData{ID: "a", Score: -5.0}.toDetailedPost()
	assert.Equal(t, 0, detail.Score)

	assert.Equal(t, math.MaxInt, commentData{Body: "x", Score: 1e300}.toComment(10).Score)
	assert.Equal(t, -3, commentData{Body: "x", Score: -3.9}.toComment(10).Score)
}

func TestSearchAcrossSubreddits(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/r/LocalLLaMA+OpenAI/search.json", req.URL.Path)
		query := req.URL.Query()
		assert.Equal(t, "agent framework", query.Get("q"))
		assert.Equal(t, "new", query.Get("sort"))
		assert.Equal(t, "month", query.Get("t"))
		assert.Equal(t, "25", query.Get("limit"))
		assert.Equal(t, "1", query.Get("restrict_sr"))
		w.Write([]byte(listingBody))
	})

	posts, err := r.Search(context.Background(), models.SearchQuery{
		Keywords:   []string{"agent", "framework"},
		Subreddits: []string{"LocalLLaMA", "OpenAI"},
		Sort:       "new",
		Timeframe:  "month",
		Limit:      25,
	})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "abc", posts[0].ID)
}

func TestSearchDefaultsToAll(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/r/all/search.json", req.URL.Path)
		query := req.URL.Query()
		assert.Equal(t, "top", query.Get("sort"))
		assert.Equal(t, "week", query.Get("t"))
		assert.Equal(t, "100", query.Get("limit"))
		assert.Empty(t, query.Get("restrict_sr"))
		w.Write([]byte(`{"kind":"Listing","data":{"children":[]}}`))
	})

	posts, err := r.Search(context.Background(), models.SearchQuery{Keywords: []string{"rag"}})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSearchRejectsBadQueries(t *testing.T) {
	r := newTestAPI(t, func(w http.ResponseWriter, req *http.Request) {
		t.Errorf("unexpected request to %s", req.URL.Path)
	})
	ctx := context.Background()

	_, err := r.Search(ctx, models.SearchQuery{Keywords: []string{"  "}})
	assert.ErrorContains(t, err, "keyword")

	_, err = r.Search(ctx, models.SearchQuery{Keywords: []string{"llm"}, Sort: "best"})
	assert.ErrorContains(t, err, "unsupported search sort")

	_, err = r.Search(ctx, models.SearchQuery{Keywords: []string{"llm"}, Timeframe: "decade"})
	assert.ErrorContains(t, err, "unsupported search timeframe")
}
