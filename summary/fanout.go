package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brettboylen/reddit-trends/models"
)

const (
	maxSummaryLength    = 100
	minBodyLength       = 50
	maxCommentLength    = 200
	defaultWorkers      = 5
	progressLogInterval = 10
)

// Summarizer turns a prompt into a short text
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// CommentFetcher pulls top-level comments for a post
type CommentFetcher interface {
	FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error)
}

// Result is the outcome of summarizing one post: either Summary or Err is set
type Result struct {
	Post    models.ScoredPost
	Summary string
	Err     error
}

// Fanout summarizes a small set of posts concurrently with a bounded pool
type Fanout struct {
	summarizer  Summarizer
	comments    CommentFetcher
	workers     int
	maxComments int
	log         *logrus.Logger
}

// NewFanout creates a summary fan-out. comments may be nil, in which case
// short posts are summarized without comment context.
func NewFanout(summarizer Summarizer, comments CommentFetcher, workers, maxComments int, log *logrus.Logger) *Fanout {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Fanout{
		summarizer:  summarizer,
		comments:    comments,
		workers:     workers,
		maxComments: maxComments,
		log:         log,
	}
}

// Summarize annotates every post with a summary or a summary error. The
// returned slice has the same length as posts but is in completion order;
// callers that need the ranking back must re-sort.
func (f *Fanout) Summarize(ctx context.Context, posts []models.ScoredPost) []models.ScoredPost {
	f.log.WithFields(logrus.Fields{
		"posts":   len(posts),
		"workers": f.workers,
	}).Info("Generating summaries")

	results := make(chan Result, len(posts))
	var g errgroup.Group
	g.SetLimit(f.workers)

	for _, post := range posts {
		g.Go(func() error {
			results <- f.summarizeOne(ctx, post)
			return nil
		})
	}
	g.Wait()
	close(results)

	annotated := make([]models.ScoredPost, 0, len(posts))
	failed := 0
	for res := range results {
		post := res.Post
		if res.Err != nil {
			failed++
			f.log.WithError(res.Err).WithField("id", post.ID).Error("Failed to summarize post")
			post.SetSummaryError(res.Err)
		} else {
			post.SetSummary(res.Summary)
		}
		annotated = append(annotated, post)

		if len(annotated)%progressLogInterval == 0 {
			f.log.WithFields(logrus.Fields{
				"done":  len(annotated),
				"total": len(posts),
			}).Info("Summary progress")
		}
	}

	f.log.WithFields(logrus.Fields{
		"summarized": len(annotated) - failed,
		"failed":     failed,
	}).Info("Summaries complete")

	return annotated
}

// summarizeOne is the task boundary: nothing it does, panics included, can
// escape into sibling tasks
func (f *Fanout) summarizeOne(ctx context.Context, post models.ScoredPost) (res Result) {
	res.Post = post
	defer func() {
		if r := recover(); r != nil {
			res.Summary = ""
			res.Err = fmt.Errorf("summarizer panicked: %v", r)
		}
	}()

	if f.summarizer == nil {
		res.Err = fmt.Errorf("no summarizer configured")
		return res
	}

	prompt := f.buildPrompt(ctx, post)
	text, err := f.summarizer.Summarize(ctx, prompt)
	if err != nil {
		res.Err = fmt.Errorf("summarize post %s: %w", post.ID, err)
		return res
	}

	res.Summary = truncate(strings.TrimSpace(text), maxSummaryLength)
	return res
}

// buildPrompt uses the post body alone when it is long enough, and otherwise
// adds the top comments for context
func (f *Fanout) buildPrompt(ctx context.Context, post models.ScoredPost) string {
	body := post.SelfTextPreview
	if utf8.RuneCountInString(body) >= minBodyLength {
		return fmt.Sprintf("Title: %s\n\nBody: %s", post.Title, body)
	}
	return fmt.Sprintf("Title: %s\n\nBody: %s\n\nComments:\n%s", post.Title, body, f.commentContext(ctx, post.ID))
}

func (f *Fanout) commentContext(ctx context.Context, postID string) string {
	if f.comments == nil {
		return "Comments unavailable"
	}

	comments, err := f.comments.FetchComments(ctx, postID, f.maxComments)
	if err != nil {
		f.log.WithError(err).WithField("id", postID).Warn("Failed to fetch comments for summary")
		return "Comments unavailable"
	}

	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		if len(lines) >= f.maxComments {
			break
		}
		if c.Body == "" || c.Body == "[deleted]" || c.Body == "[removed]" {
			continue
		}
		lines = append(lines, "- "+truncate(c.Body, maxCommentLength))
	}

	if len(lines) == 0 {
		return "No usable comments"
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
