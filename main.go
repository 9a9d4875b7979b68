package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brettboylen/reddit-trends/api"
	"github.com/brettboylen/reddit-trends/collector"
	"github.com/brettboylen/reddit-trends/llm"
	"github.com/brettboylen/reddit-trends/models"
	"github.com/brettboylen/reddit-trends/pipeline"
	"github.com/brettboylen/reddit-trends/report"
	"github.com/brettboylen/reddit-trends/server"
	"github.com/brettboylen/reddit-trends/summary"
	"github.com/brettboylen/reddit-trends/utils"
)

var (
	envPath  string
	logLevel string
	log      *logrus.Logger
	config   *utils.Config

	searchSubreddits  []string
	searchSort        string
	searchTime        string
	searchLimit       int
	searchMinScore    int
	searchMinComments int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "reddit-trends",
	Short:        "Reddit AI community trend reports",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = setupLogger(logLevel)

		var err error
		config, err = utils.LoadConfig(envPath, log)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log.WithFields(logrus.Fields{
			"subreddits":   len(config.Reddit.Subreddits),
			"top_k":        config.Pipeline.TopK,
			"dedup_policy": config.Pipeline.DedupPolicy,
			"report_dir":   config.Report.Dir,
		}).Info("Configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringSliceVar(&searchSubreddits, "subreddits", nil, "Subreddits to search (default r/all)")
	searchCmd.Flags().StringVar(&searchSort, "sort", "top", "Sort order (relevance, hot, top, new, comments)")
	searchCmd.Flags().StringVar(&searchTime, "time", "week", "Time filter (hour, day, week, month, year, all)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 100, "Maximum posts to request")
	searchCmd.Flags().IntVar(&searchMinScore, "min-score", 5, "Minimum post score")
	searchCmd.Flags().IntVar(&searchMinComments, "min-comments", 3, "Minimum comment count")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and write a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := buildPipeline(newRedditAPI())
		result, err := p.Run(ctx)
		if err != nil {
			return fmt.Errorf("pipeline run failed: %w", err)
		}

		path, err := report.NewWriter(config.Report.Dir, log).Write(result)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline periodically and serve the latest report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := server.NewStore()
		writer := report.NewWriter(config.Report.Dir, log)
		redditAPI := newRedditAPI()
		srv := server.New(store, redditAPI, config.Server.Port, config.Server.MaxRequestsPerMinute, log)
		p := buildPipeline(redditAPI)

		go func() {
			if err := srv.Start(ctx); err != nil {
				log.WithError(err).Error("API server stopped unexpectedly")
				cancel()
			}
		}()

		go func() {
			err := p.Start(ctx, config.Pipeline.Interval, func(r *models.Report) {
				content, err := report.Render(r)
				if err != nil {
					log.WithError(err).Error("Failed to render report")
					return
				}
				store.Set(r, content)
				if _, err := writer.Save(r, content); err != nil {
					log.WithError(err).Error("Failed to save report")
				}
			})
			if err != nil && err != context.Canceled {
				log.WithError(err).Error("Pipeline stopped unexpectedly")
			}
		}()

		waitForShutdown(ctx, cancel)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search KEYWORD...",
	Short: "Search Reddit for posts matching keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		posts, err := collector.Search(ctx, newRedditAPI(), models.SearchQuery{
			Keywords:    args,
			Subreddits:  searchSubreddits,
			Sort:        searchSort,
			Timeframe:   searchTime,
			Limit:       searchLimit,
			MinScore:    searchMinScore,
			MinComments: searchMinComments,
		}, log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range posts {
			fmt.Fprintf(out, "%6d  %4d  r/%-20s %s\n", p.Score, p.NumComments, p.Subreddit, p.Title)
			fmt.Fprintf(out, "              %s\n", p.Permalink)
		}
		return nil
	},
}

func newRedditAPI() *api.RedditAPI {
	return api.NewRedditAPI(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.UserAgent,
		config.Reddit.MaxRequestsPerMinute,
		log,
	)
}

// buildPipeline wires the collector, summarizer and pipeline around the Reddit client
func buildPipeline(redditAPI *api.RedditAPI) *pipeline.Pipeline {
	coll := collector.NewCollector(
		redditAPI,
		redditAPI,
		config.Reddit.Subreddits,
		config.Pipeline.DetailWorkers,
		log,
	)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     config.LLM.BaseURL,
		APIKey:      config.LLM.APIKey,
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
	}, log)

	var summarizer summary.Summarizer
	if llmClient.IsConfigured() {
		summarizer = llmClient
	} else {
		log.Warn("LLM_API_KEY not set, posts will carry a summary error instead of a summary")
	}

	fanout := summary.NewFanout(
		summarizer,
		redditAPI,
		config.Pipeline.SummaryWorkers,
		config.Pipeline.SummaryMaxComments,
		log,
	)

	names := make([]string, 0, len(config.Reddit.Subreddits))
	for _, sr := range config.Reddit.Subreddits {
		names = append(names, sr.Name)
	}

	return pipeline.New(coll, fanout, pipeline.Options{
		TopK:        config.Pipeline.TopK,
		RankingTopK: config.Pipeline.RankingTopK,
		DedupPolicy: config.Pipeline.DedupPolicy,
		DetailDepth: config.Pipeline.DetailCommentDepth,
		Subreddits:  names,
	}, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// waitForShutdown blocks until a shutdown signal arrives or ctx is cancelled
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("Reddit Trends stopped")
}
