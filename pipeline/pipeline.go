package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/cleaner"
	"github.com/brettboylen/reddit-trends/models"
	"github.com/brettboylen/reddit-trends/scoring"
	"github.com/brettboylen/reddit-trends/stats"
)

// Source collects raw listings and post details
type Source interface {
	Collect(ctx context.Context) (models.RawGroups, error)
	FetchDetails(ctx context.Context, ids []string, depth int) []*models.DetailedPost
}

// Summaries annotates the top posts with summaries
type Summaries interface {
	Summarize(ctx context.Context, posts []models.ScoredPost) []models.ScoredPost
}

// Options tunes a pipeline run
type Options struct {
	TopK        int
	RankingTopK int
	DedupPolicy string
	DetailDepth int
	Subreddits  []string
}

// Pipeline runs collect, clean, analyze, deduplicate, score, summarize and
// detail steps in order
type Pipeline struct {
	source    Source
	summaries Summaries
	cleaner   *cleaner.Cleaner
	analyzer  *stats.Analyzer
	scorer    *scoring.Scorer
	opts      Options
	log       *logrus.Logger
}

// New creates a pipeline. summaries may be nil, in which case no summaries are generated.
func New(source Source, summaries Summaries, opts Options, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		summaries: summaries,
		cleaner:   cleaner.NewCleaner(log),
		analyzer:  stats.NewAnalyzer(log),
		scorer:    scoring.NewScorer(log),
		opts:      opts,
		log:       log,
	}
}

// Run executes one full pipeline run
func (p *Pipeline) Run(ctx context.Context) (*models.Report, error) {
	report := &models.Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		Subreddits: p.opts.Subreddits,
	}
	log := p.log.WithField("run_id", report.RunID)
	log.Info("Pipeline run started")

	raw, err := p.source.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	cleaned, cleaningStats, err := p.cleaner.Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	report.Cleaning = cleaningStats
	report.Rates = cleaningStats.Rates()

	// trends count every appearance, so they run before deduplication
	report.Trends = p.analyzer.Analyze(cleaned)
	report.Rankings = stats.Rankings(cleaned, p.opts.RankingTopK)

	unique := p.cleaner.Deduplicate(cleaned, p.opts.DedupPolicy)
	report.UniquePosts = len(unique)

	ranked := p.scorer.ScorePosts(unique, report.Trends)
	top := scoring.TopK(ranked, p.opts.TopK)

	if p.summaries != nil && len(top) > 0 {
		top = p.summaries.Summarize(ctx, top)
		scoring.SortByQuality(top)
	}
	report.Top = top

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(top))
	for _, post := range top {
		ids = append(ids, post.ID)
	}
	report.Details = p.source.FetchDetails(ctx, ids, p.opts.DetailDepth)

	report.FinishedAt = time.Now()
	log.WithFields(logrus.Fields{
		"valid":      cleaningStats.Valid,
		"unique":     report.UniquePosts,
		"top":        len(report.Top),
		"summarized": report.Summarized(),
		"details":    len(report.Details),
		"duration":   report.Duration().String(),
	}).Info("Pipeline run complete")

	return report, nil
}

// Start runs the pipeline immediately and then on every interval until ctx is
// cancelled. Each successful report is handed to onReport; failed runs are
// logged and skipped.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration, onReport func(*models.Report)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runOnce(ctx, onReport)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx, onReport)
		}
	}
}

func (p *Pipeline) runOnce(ctx context.Context, onReport func(*models.Report)) {
	report, err := p.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.WithError(err).Error("Pipeline run failed, keeping previous report")
		}
		return
	}
	if onReport != nil {
		onReport(report)
	}
}
