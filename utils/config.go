package utils

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/brettboylen/reddit-trends/cleaner"
	"github.com/brettboylen/reddit-trends/models"
)

const defaultSubreddits = "LocalLLaMA:50,MachineLearning:50,singularity:40,OpenAI:40,LangChain:30,artificial:25"

const defaultSubredditLimit = 25

// Config holds all configuration for the application
type Config struct {
	Reddit   RedditConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Report   ReportConfig
	Server   ServerConfig
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID             string
	ClientSecret         string
	UserAgent            string
	Subreddits           []models.SubredditConfig
	MaxRequestsPerMinute int
}

// LLMConfig holds the summarization backend configuration
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// PipelineConfig holds the knobs of a single pipeline run
type PipelineConfig struct {
	TopK               int
	RankingTopK        int
	DedupPolicy        string
	SummaryWorkers     int
	SummaryMaxComments int
	DetailWorkers      int
	DetailCommentDepth int
	Interval           time.Duration
}

// ReportConfig holds report output configuration
type ReportConfig struct {
	Dir string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                 int
	MaxRequestsPerMinute int
}

// LoadConfig loads configuration from the .env file. A missing file is not an
// error; the process environment is used as is.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.WithField("file", envPath).Warn("No .env file found, using process environment")
	}

	subreddits, err := loadSubreddits()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Reddit: RedditConfig{
			ClientID:             getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:         getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:            getEnv("REDDIT_USER_AGENT", ""),
			Subreddits:           subreddits,
			MaxRequestsPerMinute: getEnvAsInt("REDDIT_MAX_REQUESTS_PER_MINUTE", 100),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "qwen3-max"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 200),
		},
		Pipeline: PipelineConfig{
			TopK:               getEnvAsInt("PIPELINE_TOP_K", 5),
			RankingTopK:        getEnvAsInt("PIPELINE_RANKING_TOP_K", 20),
			DedupPolicy:        getEnv("PIPELINE_DEDUP_POLICY", cleaner.PolicyHighestHot),
			SummaryWorkers:     getEnvAsInt("SUMMARY_WORKERS", 3),
			SummaryMaxComments: getEnvAsInt("SUMMARY_MAX_COMMENTS", 5),
			DetailWorkers:      getEnvAsInt("DETAIL_WORKERS", 3),
			DetailCommentDepth: getEnvAsInt("DETAIL_COMMENT_DEPTH", 2),
			Interval:           time.Duration(getEnvAsInt("PIPELINE_INTERVAL", 3600)) * time.Second,
		},
		Report: ReportConfig{
			Dir: getEnv("REPORT_DIR", "reports"),
		},
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			MaxRequestsPerMinute: getEnvAsInt("SERVER_MAX_REQUESTS_PER_MINUTE", 120),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// loadSubreddits reads REDDIT_SUBREDDITS_FILE when set, REDDIT_SUBREDDITS otherwise
func loadSubreddits() ([]models.SubredditConfig, error) {
	if path := getEnv("REDDIT_SUBREDDITS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read subreddits file: %w", err)
		}
		return parseSubredditGroups(data)
	}
	return parseSubreddits(getEnv("REDDIT_SUBREDDITS", defaultSubreddits))
}

// parseSubreddits parses a comma-separated list of "name:limit" entries. The
// limit is optional. Repeated names keep their first entry.
func parseSubreddits(subredditsStr string) ([]models.SubredditConfig, error) {
	parts := strings.Split(subredditsStr, ",")

	subreddits := make([]models.SubredditConfig, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		name, limitStr, hasLimit := strings.Cut(trimmed, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid subreddit entry %q", trimmed)
		}

		limit := defaultSubredditLimit
		if hasLimit {
			n, err := strconv.Atoi(strings.TrimSpace(limitStr))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid limit for subreddit %q: %q", name, limitStr)
			}
			limit = n
		}
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		subreddits = append(subreddits, models.SubredditConfig{Name: name, Limit: limit})
	}

	return subreddits, nil
}

// parseSubredditGroups parses a YAML document mapping priority group names to
// subreddit lists, e.g.
//
//	high_priority:
//	  - name: LocalLLaMA
//	    limit: 50
//
// Groups are flattened in name order. A subreddit listed more than once keeps
// its first entry; names compare case-insensitively.
func parseSubredditGroups(data []byte) ([]models.SubredditConfig, error) {
	var groups map[string][]models.SubredditConfig
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse subreddits file: %w", err)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var subreddits []models.SubredditConfig
	seen := make(map[string]bool)
	for _, group := range names {
		for _, sr := range groups[group] {
			if sr.Name == "" {
				return nil, fmt.Errorf("subreddit without name in group %q", group)
			}
			if seen[strings.ToLower(sr.Name)] {
				continue
			}
			seen[strings.ToLower(sr.Name)] = true
			if sr.Limit <= 0 {
				sr.Limit = defaultSubredditLimit
			}
			subreddits = append(subreddits, sr)
		}
	}
	return subreddits, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Reddit.ClientID == "" {
		return fmt.Errorf("REDDIT_CLIENT_ID environment variable is required")
	}
	if config.Reddit.ClientSecret == "" {
		return fmt.Errorf("REDDIT_CLIENT_SECRET environment variable is required")
	}

	// User-Agent required per API documentation;  it has strict requirements.  see example.env
	if config.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT environment variable is required")
	}
	if len(config.Reddit.Subreddits) == 0 {
		return fmt.Errorf("REDDIT_SUBREDDITS must name at least one subreddit")
	}
	if config.Pipeline.TopK < 1 {
		return fmt.Errorf("PIPELINE_TOP_K must be positive")
	}
	if config.Pipeline.RankingTopK < 1 {
		return fmt.Errorf("PIPELINE_RANKING_TOP_K must be positive")
	}
	if !cleaner.ValidPolicy(config.Pipeline.DedupPolicy) {
		return fmt.Errorf("PIPELINE_DEDUP_POLICY %q is not a known policy", config.Pipeline.DedupPolicy)
	}
	if config.Pipeline.Interval < time.Minute {
		return fmt.Errorf("PIPELINE_INTERVAL must be at least 60 seconds")
	}
	if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}

	return nil
}
