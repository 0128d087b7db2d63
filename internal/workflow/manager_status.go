package workflow

import (
	"context"
	"time"

	"lala/internal/logging"
	"lala/internal/store"
)

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running    bool                 `json:"running"`
	LastError  string               `json:"last_error,omitempty"`
	CurrentJob *Job                 `json:"current_job,omitempty"`
	LastJob    *Job                 `json:"last_job,omitempty"`
	Processed  int                  `json:"processed"`
	AssetStats map[store.Status]int `json:"asset_stats"`
}

// Status returns the latest worker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		CurrentJob: copyJob(m.current),
		LastJob:    copyJob(m.lastJob),
		Processed:  m.processed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read asset stats", logging.Error(err))
	}
	summary.AssetStats = stats
	return summary
}

// CurrentJob returns the running job, if any.
func (m *Manager) CurrentJob() *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyJob(m.current)
}

func (m *Manager) beginJob(asset *store.Asset, started time.Time) {
	m.mu.Lock()
	m.current = &Job{
		AssetID:   asset.ID,
		FileID:    asset.FileID,
		Kind:      asset.Kind,
		StartedAt: started.UTC(),
	}
	m.mu.Unlock()
}

func (m *Manager) updateJob(fraction float64, message string) {
	m.mu.Lock()
	if m.current != nil {
		m.current.Progress = fraction
		if message != "" {
			m.current.Message = message
		}
	}
	m.mu.Unlock()
}

func (m *Manager) recordOutcome(outcome string) {
	m.mu.Lock()
	if m.current != nil {
		m.current.Outcome = outcome
	}
	m.mu.Unlock()
}

func (m *Manager) endJob() {
	m.mu.Lock()
	if m.current != nil {
		m.lastJob = m.current
		m.processed++
	}
	m.current = nil
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func copyJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	clone := *job
	return &clone
}
