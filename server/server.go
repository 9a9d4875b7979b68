package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/reddit-trends/models"
	"github.com/brettboylen/reddit-trends/report"
)

// RateLimitReporter reports the upstream Reddit rate limit window
type RateLimitReporter interface {
	GetRateLimitStatus() (remaining, reset, used int)
}

// Server exposes the latest report over HTTP
type Server struct {
	echo   *echo.Echo
	store  *Store
	limits RateLimitReporter
	port   int
	log    *logrus.Logger
}

// New creates the HTTP API. A maxRequestsPerMinute of zero disables the
// per-client rate limiter. limits may be nil.
func New(store *Store, limits RateLimitReporter, port, maxRequestsPerMinute int, log *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	// middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if maxRequestsPerMinute > 0 {
		e.Use(rateLimiter(maxRequestsPerMinute))
	}

	s := &Server{echo: e, store: store, limits: limits, port: port, log: log}
	s.routes()
	return s
}

func rateLimiter(maxRequestsPerMinute int) echo.MiddlewareFunc {
	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0

	tooMany := func(ctx echo.Context) error {
		return ctx.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Rate limit exceeded, please try again later",
		})
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond * 0.95),
				Burst:     1, // no burst capability
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return tooMany(ctx)
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return tooMany(ctx)
		},
	})
}

func (s *Server) routes() {
	s.echo.GET("/api/report", s.withReport(func(c echo.Context, r *models.Report) error {
		return c.JSON(http.StatusOK, r)
	}))

	s.echo.GET("/api/trends", s.withReport(func(c echo.Context, r *models.Report) error {
		return c.JSON(http.StatusOK, r.Trends)
	}))

	s.echo.GET("/api/posts/top", s.withReport(func(c echo.Context, r *models.Report) error {
		posts := r.Top
		if limitStr := c.QueryParam("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "limit must be a positive integer",
				})
			}
			if limit < len(posts) {
				posts = posts[:limit]
			}
		}
		return c.JSON(http.StatusOK, posts)
	}))

	s.echo.GET("/api/cleaning", s.withReport(func(c echo.Context, r *models.Report) error {
		return c.JSON(http.StatusOK, map[string]any{
			"stats":        r.Cleaning,
			"rates":        r.Rates,
			"unique_posts": r.UniquePosts,
		})
	}))

	s.echo.GET("/api/subreddits/:subreddit", s.withReport(func(c echo.Context, r *models.Report) error {
		subreddit := c.Param("subreddit")

		var stats models.SubredditStats
		found := false
		if r.Trends != nil {
			stats, found = r.Trends.Subreddits.Lookup(subreddit)
		}
		if !found {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("No statistics available for subreddit %s", subreddit),
			})
		}
		return c.JSON(http.StatusOK, stats)
	}))

	s.echo.GET("/report", func(c echo.Context) error {
		_, markdown := s.store.Get()
		if markdown == nil {
			return c.String(http.StatusServiceUnavailable, "No report available yet")
		}
		page, err := report.HTML(markdown)
		if err != nil {
			s.log.WithError(err).Error("Failed to render report HTML")
			return c.String(http.StatusInternalServerError, "Failed to render report")
		}
		return c.HTMLBlob(http.StatusOK, page)
	})

	s.echo.GET("/api/ratelimit", func(c echo.Context) error {
		if s.limits == nil {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Rate limit status is not tracked",
			})
		}
		remaining, reset, used := s.limits.GetRateLimitStatus()
		return c.JSON(http.StatusOK, map[string]int{
			"remaining":     remaining,
			"reset_seconds": reset,
			"used":          used,
		})
	})

	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

// withReport answers 503 until the first report is available
func (s *Server) withReport(h func(echo.Context, *models.Report) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		r, _ := s.store.Get()
		if r == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": "No report available yet",
			})
		}
		return h(c, r)
	}
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		serverAddr := fmt.Sprintf(":%d", s.port)
		s.log.WithField("port", s.port).Info("Starting API server")
		if err := s.echo.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
