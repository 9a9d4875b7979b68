package report

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/reddit-trends/models"
)

//go:embed templates/report.md.tmpl
var templateFS embed.FS

const (
	latestFileName    = "latest_report.md"
	excerptLength     = 300
	commentsPerPost   = 3
	timestampLayout   = "20060102_150405"
	displayDateLayout = "2006-01-02 15:04:05 MST"
)

var reportTemplate = template.Must(
	template.New("report.md.tmpl").Funcs(template.FuncMap{
		"date":  func(t time.Time) string { return t.Format(displayDateLayout) },
		"join":  strings.Join,
		"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"inc":   func(i int) int { return i + 1 },
		"deref": func(s *string) string { return *s },
		"excerpt": func(s string) string {
			return excerpt(s, excerptLength)
		},
		"firstComments": func(c []models.Comment) []models.Comment {
			if len(c) > commentsPerPost {
				return c[:commentsPerPost]
			}
			return c
		},
	}).ParseFS(templateFS, "templates/report.md.tmpl"),
)

type rankingSection struct {
	Name  string
	Posts []models.CleanedPost
}

type view struct {
	*models.Report
	RankingSections []rankingSection
}

// Render renders a report as Markdown
func Render(r *models.Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}

	data := view{
		Report: r,
		RankingSections: []rankingSection{
			{Name: "Hot", Posts: r.Rankings.Hot},
			{Name: "Top of the Week", Posts: r.Rankings.Week},
			{Name: "Top of the Month", Posts: r.Rankings.Month},
		},
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Writer stores rendered reports under a date-partitioned directory
type Writer struct {
	dir string
	log *logrus.Logger
}

// NewWriter creates a report writer rooted at dir
func NewWriter(dir string, log *logrus.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// Write renders the report to <dir>/YYYY/MM/DD/report_YYYYMMDD_HHMMSS.md and
// refreshes <dir>/latest_report.md. It returns the dated path.
func (w *Writer) Write(r *models.Report) (string, error) {
	content, err := Render(r)
	if err != nil {
		return "", err
	}
	return w.Save(r, content)
}

// Save writes already rendered report content, see Write
func (w *Writer) Save(r *models.Report, content []byte) (string, error) {
	stamp := r.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	dayDir := filepath.Join(w.dir, stamp.Format("2006"), stamp.Format("01"), stamp.Format("02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dayDir, "report_"+stamp.Format(timestampLayout)+".md")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	latest := filepath.Join(w.dir, latestFileName)
	if err := os.WriteFile(latest, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write latest report: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"run_id": r.RunID,
		"path":   path,
		"bytes":  len(content),
	}).Info("Report written")

	return path, nil
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
