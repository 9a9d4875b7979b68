package api

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	kindLink    = "t3"
	kindComment = "t1"

	detailCommentLimit = 20
	maxCommentBody     = 500
	maxReplies         = 5
	maxReplyBody       = 300
)

// listing is Reddit's paginated container
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// postData keeps numeric fields untyped so malformed values reach the cleaner as-is
type postData struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	Score         any     `json:"score"`
	UpvoteRatio   any     `json:"upvote_ratio"`
	NumComments   any     `json:"num_comments"`
	CreatedUTC    any     `json:"created_utc"`
	SelfText      string  `json:"selftext"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	LinkFlairText *string `json:"link_flair_text"`
	IsSelf        bool    `json:"is_self"`
	Stickied      bool    `json:"stickied"`
	Locked        bool    `json:"locked"`
}

type commentData struct {
	ID          string          `json:"id"`
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	Score       float64         `json:"score"`
	CreatedUTC  float64         `json:"created_utc"`
	IsSubmitter bool            `json:"is_submitter"`
	Replies     json.RawMessage `json:"replies"`
}

func (p postData) author() string {
	if p.Author == "" {
		return models.DeletedAuthor
	}
	return p.Author
}

func (p postData) flair() string {
	if p.LinkFlairText == nil {
		return ""
	}
	return *p.LinkFlairText
}

func (p postData) toRawPost() *models.RawPost {
	return &models.RawPost{
		ID:              p.ID,
		Title:           p.Title,
		Author:          p.author(),
		Subreddit:       p.Subreddit,
		Score:           p.Score,
		NumComments:     p.NumComments,
		UpvoteRatio:     p.UpvoteRatio,
		CreatedUTC:      p.CreatedUTC,
		SelfTextPreview: truncate(p.SelfText, previewLength),
		URL:             p.URL,
		Permalink:       permalinkPrefix + p.Permalink,
		Flair:           p.flair(),
		IsSelf:          p.IsSelf,
		Stickied:        p.Stickied,
		Locked:          p.Locked,
	}
}

func (p postData) toDetailedPost() *models.DetailedPost {
	return &models.DetailedPost{
		ID:          p.ID,
		Title:       p.Title,
		Author:      p.author(),
		Subreddit:   p.Subreddit,
		Content:     p.SelfText,
		URL:         p.URL,
		Permalink:   permalinkPrefix + p.Permalink,
		Score:       max(0, clampInt(number(p.Score))),
		UpvoteRatio: number(p.UpvoteRatio),
		NumComments: max(0, clampInt(number(p.NumComments))),
		CreatedAt:   epoch(number(p.CreatedUTC)),
		Flair:       p.flair(),
		IsSelf:      p.IsSelf,
	}
}

// buildComments converts comment things into a tree, keeping at most limit
// top-level comments and maxReplies replies per comment when depth > 1
func buildComments(children []thing, limit, maxBody, depth int) []models.Comment {
	comments := make([]models.Comment, 0, max(0, min(limit, len(children))))
	for _, child := range children {
		if len(comments) >= limit {
			break
		}
		if child.Kind != kindComment {
			continue
		}
		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		if isRemoved(data.Body) {
			continue
		}

		comment := data.toComment(maxBody)
		if depth > 1 {
			comment.Replies = buildComments(data.replies(), maxReplies, maxReplyBody, depth-1)
		}
		comments = append(comments, comment)
	}
	return comments
}

func (c commentData) toComment(maxBody int) models.Comment {
	author := c.Author
	if author == "" {
		author = models.DeletedAuthor
	}
	return models.Comment{
		ID:          c.ID,
		Author:      author,
		Body:        truncate(c.Body, maxBody),
		Score:       clampInt(c.Score),
		CreatedAt:   epoch(c.CreatedUTC),
		IsSubmitter: c.IsSubmitter,
	}
}

// replies is either an empty string or a nested listing
func (c commentData) replies() []thing {
	raw := strings.TrimSpace(string(c.Replies))
	if raw == "" || raw == `""` || raw == "null" {
		return nil
	}
	var l listing
	if err := json.Unmarshal(c.Replies, &l); err != nil {
		return nil
	}
	return l.Data.Children
}

func isRemoved(body string) bool {
	return body == "" || body == "[deleted]" || body == "[removed]"
}

func number(v any) float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// clampInt truncates f toward zero, saturating at the int range
func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func epoch(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
