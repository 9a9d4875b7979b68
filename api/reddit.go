package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	baseURL         = "https://oauth.reddit.com"
	authURL         = "https://www.reddit.com/api/v1/access_token"
	permalinkPrefix = "https://reddit.com"
	maxLimit        = 100 // max number of items per request
	previewLength   = 200
)

var (
	searchSorts      = map[string]bool{"relevance": true, "hot": true, "top": true, "new": true, "comments": true}
	searchTimeframes = map[string]bool{"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true}
)

// RedditAPI represents a Reddit API client
type RedditAPI struct {
	clientID            string
	clientSecret        string
	userAgent           string
	baseURL             string
	authURL             string
	httpClient          *http.Client
	accessToken         string
	tokenExpiry         time.Time
	mutex               sync.RWMutex
	log                 *logrus.Logger
	limiter             *rate.Limiter
	rateRemainingCached int
	rateResetCached     int
	rateUsedCached      int
	rateHeadersMutex    sync.RWMutex
}

// NewRedditAPI creates a new Reddit API client
func NewRedditAPI(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	// default to 100 requests per minute (real Reddit limit)
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	// use 95% of the allowance, no burst
	targetRate := float64(maxRequestsPerMinute) / 60.0 * 0.95

	return &RedditAPI{
		clientID:        clientID,
		clientSecret:    clientSecret,
		userAgent:       userAgent,
		baseURL:         baseURL,
		authURL:         authURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		log:             log,
		limiter:         rate.NewLimiter(rate.Limit(targetRate), 1),
		rateResetCached: 600,
	}
}

// GetRateLimitStatus returns the current rate limit status (remaining requests, reset time in seconds, and used requests)
func (r *RedditAPI) GetRateLimitStatus() (int, int, int) {
	r.rateHeadersMutex.RLock()
	defer r.rateHeadersMutex.RUnlock()
	return r.rateRemainingCached, r.rateResetCached, r.rateUsedCached
}

// authenticate authenticates with the Reddit API
func (r *RedditAPI) authenticate(ctx context.Context) error {
	// first check if we already have a valid token without holding the lock for long
	r.mutex.RLock()
	token := r.accessToken
	expiry := r.tokenExpiry
	r.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	r.log.Info("Authenticating with Reddit API")

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait during authentication: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	r.mutex.Unlock()

	r.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// get performs an authenticated, rate limited GET and decodes the JSON body into out
func (r *RedditAPI) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.log.WithFields(logrus.Fields{
			"path":          path,
			"response_body": string(body),
			"status_code":   resp.StatusCode,
		}).Error("Reddit API error response")
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchListing fetches one timeframe of a subreddit: "hot" reads the hot
// listing, any other timeframe reads the top listing for that period
func (r *RedditAPI) FetchListing(ctx context.Context, subreddit, timeframe string, limit int) ([]*models.RawPost, error) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")

	var path string
	switch timeframe {
	case models.TimeframeHot:
		path = fmt.Sprintf("/r/%s/hot.json", subreddit)
	case models.TimeframeDay, models.TimeframeWeek, models.TimeframeMonth, "year", "all":
		path = fmt.Sprintf("/r/%s/top.json", subreddit)
		query.Set("t", timeframe)
	default:
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	r.log.WithFields(logrus.Fields{
		"subreddit": subreddit,
		"timeframe": timeframe,
		"limit":     limit,
	}).Debug("Fetching listing from Reddit API")

	var resp listing
	if err := r.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	posts := r.decodePosts(resp.Data.Children, subreddit)

	r.log.WithFields(logrus.Fields{
		"post_count": len(posts),
		"subreddit":  subreddit,
		"timeframe":  timeframe,
	}).Info("Fetched listing from Reddit")

	return posts, nil
}

// Search runs a keyword search. The keywords are joined into one query and
// restricted to q.Subreddits when any are given, otherwise r/all is searched.
// Sort defaults to "top" and the timeframe to "week".
func (r *RedditAPI) Search(ctx context.Context, q models.SearchQuery) ([]*models.RawPost, error) {
	terms := strings.TrimSpace(strings.Join(q.Keywords, " "))
	if terms == "" {
		return nil, fmt.Errorf("search needs at least one keyword")
	}

	sortBy := q.Sort
	if sortBy == "" {
		sortBy = "top"
	}
	if !searchSorts[sortBy] {
		return nil, fmt.Errorf("unsupported search sort %q", sortBy)
	}

	timeframe := q.Timeframe
	if timeframe == "" {
		timeframe = models.TimeframeWeek
	}
	if !searchTimeframes[timeframe] {
		return nil, fmt.Errorf("unsupported search timeframe %q", timeframe)
	}

	limit := q.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	query := url.Values{}
	query.Set("q", terms)
	query.Set("sort", sortBy)
	query.Set("t", timeframe)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")

	scope := "all"
	if len(q.Subreddits) > 0 {
		scope = strings.Join(q.Subreddits, "+")
		query.Set("restrict_sr", "1")
	}

	r.log.WithFields(logrus.Fields{
		"query": terms,
		"scope": scope,
		"sort":  sortBy,
		"t":     timeframe,
		"limit": limit,
	}).Debug("Searching Reddit")

	var resp listing
	if err := r.get(ctx, "/r/"+scope+"/search.json", query, &resp); err != nil {
		return nil, err
	}
	posts := r.decodePosts(resp.Data.Children, scope)

	r.log.WithFields(logrus.Fields{
		"post_count": len(posts),
		"query":      terms,
		"scope":      scope,
	}).Info("Fetched search results from Reddit")

	return posts, nil
}

// decodePosts converts link things to raw posts. An undecodable post becomes
// a nil entry so the cleaner counts it as invalid.
func (r *RedditAPI) decodePosts(children []thing, subreddit string) []*models.RawPost {
	posts := make([]*models.RawPost, 0, len(children))
	for _, child := range children {
		if child.Kind != kindLink {
			continue
		}
		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			r.log.WithError(err).WithField("subreddit", subreddit).Warn("Skipping undecodable post")
			posts = append(posts, nil)
			continue
		}
		posts = append(posts, data.toRawPost())
	}
	return posts
}

// FetchComments fetches up to limit top-level comments of a post, skipping deleted ones
func (r *RedditAPI) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	_, comments, err := r.fetchThread(ctx, postID, limit, 1)
	if err != nil {
		return nil, err
	}
	tree := buildComments(comments, limit, maxCommentBody, 1)
	return tree, nil
}

// FetchDetail fetches a post with its full body and a comment tree of the given depth
func (r *RedditAPI) FetchDetail(ctx context.Context, postID string, depth int) (*models.DetailedPost, error) {
	if depth <= 0 {
		depth = 1
	}
	post, comments, err := r.fetchThread(ctx, postID, detailCommentLimit, depth)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %s not found", postID)
	}

	detail := post.toDetailedPost()
	detail.Comments = buildComments(comments, detailCommentLimit, maxCommentBody, depth)
	detail.CollectedAt = time.Now()
	return detail, nil
}

// fetchThread reads /comments/{id}, which returns the post listing followed by the comment listing
func (r *RedditAPI) fetchThread(ctx context.Context, postID string, limit, depth int) (*postData, []thing, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("depth", strconv.Itoa(depth))
	query.Set("sort", "top")
	query.Set("raw_json", "1")

	var resp []listing
	if err := r.get(ctx, "/comments/"+postID+".json", query, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp) < 2 {
		return nil, nil, fmt.Errorf("unexpected thread response for %s: %d listings", postID, len(resp))
	}

	var post *postData
	for _, child := range resp[0].Data.Children {
		if child.Kind != kindLink {
			continue
		}
		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("failed to decode post %s: %w", postID, err)
		}
		post = &data
		break
	}
	return post, resp[1].Data.Children, nil
}

// updateRateLimits records Reddit's rate limit headers for status reporting
func (r *RedditAPI) updateRateLimits(resp *http.Response) {
	// X-Ratelimit-Used: Approximate number of requests used in this period
	// X-Ratelimit-Remaining: Approximate number of requests left to use
	// X-Ratelimit-Reset: Approximate number of seconds to end of period (counts down from ~600 seconds)
	used := getHeaderAsInt(resp.Header, "X-Ratelimit-Used")
	remaining := getHeaderAsInt(resp.Header, "X-Ratelimit-Remaining")
	reset := getHeaderAsInt(resp.Header, "X-Ratelimit-Reset")

	// skip if we didn't get valid headers for some reason
	if reset == 0 && used == 0 {
		return
	}

	r.rateHeadersMutex.Lock()
	r.rateRemainingCached = remaining
	r.rateResetCached = reset
	r.rateUsedCached = used
	r.rateHeadersMutex.Unlock()

	r.log.WithFields(logrus.Fields{
		"used":      used,
		"remaining": remaining,
		"reset_sec": reset,
		"limit_rps": float64(r.limiter.Limit()),
	}).Debug("Updated rate limit status from Reddit headers")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	// reddit sends fractional values for remaining, e.g. "95.0"
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return 0
}
