package server

import (
	"sync"

	"github.com/brettboylen/reddit-trends/models"
)

// Store holds the latest successful report and its Markdown rendering
type Store struct {
	mutex    sync.RWMutex
	report   *models.Report
	markdown []byte
}

// NewStore creates an empty report store
func NewStore() *Store {
	return &Store{}
}

// Set replaces the latest report
func (s *Store) Set(report *models.Report, markdown []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.report = report
	s.markdown = markdown
}

// Get returns the latest report, or nil before the first successful run
func (s *Store) Get() (*models.Report, []byte) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.report, s.markdown
}
