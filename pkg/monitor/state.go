package monitor

import (
	"sync"
	"time"
)

// StateHolder keeps the last-known check results and cycle summary for
// the read-side API. A failed cycle never erases the last good state;
// callers see what was last observed, stamped with when.
type StateHolder struct {
	mu            sync.RWMutex
	results       map[string]ProjectResult
	subscriptions []SubscriptionStatus
	lastSummary   *CycleSummary
	lastCycleAt   time.Time
}

// NewStateHolder creates an empty state holder.
func NewStateHolder() *StateHolder {
	return &StateHolder{
		results: make(map[string]ProjectResult),
	}
}

// UpdateResult records the latest outcome for one project. A failed
// check keeps the previous successful result in LastSuccess and the
// latched alarm state, so readers see the last good value next to the
// error.
func (s *StateHolder) UpdateResult(r ProjectResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Result.Success {
		if prev, ok := s.results[r.Project.ID]; ok {
			if prev.Result.Success {
				last := prev.Result
				r.LastSuccess = &last
			} else {
				r.LastSuccess = prev.LastSuccess
			}
			r.NeedAlarm = prev.NeedAlarm
		}
	}
	s.results[r.Project.ID] = r
}

// Get returns the last-known result for a project ID.
func (s *StateHolder) Get(projectID string) (ProjectResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[projectID]
	return r, ok
}

// Results returns a copy of every last-known project result.
func (s *StateHolder) Results() []ProjectResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProjectResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	return out
}

// UpdateSubscriptions replaces the computed renewal outlook.
func (s *StateHolder) UpdateSubscriptions(statuses []SubscriptionStatus) {
	s.mu.Lock()
	s.subscriptions = statuses
	s.mu.Unlock()
}

// Subscriptions returns a copy of the last computed renewal outlook.
func (s *StateHolder) Subscriptions() []SubscriptionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SubscriptionStatus, len(s.subscriptions))
	copy(out, s.subscriptions)
	return out
}

// UpdateSummary records the outcome of the cycle that just finished.
func (s *StateHolder) UpdateSummary(summary CycleSummary) {
	s.mu.Lock()
	s.lastSummary = &summary
	s.lastCycleAt = summary.StartedAt
	s.mu.Unlock()
}

// Summary returns the last cycle summary, if any cycle has run.
func (s *StateHolder) Summary() (CycleSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSummary == nil {
		return CycleSummary{}, false
	}
	return *s.lastSummary, true
}
