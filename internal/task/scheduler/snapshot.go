package scheduler

// Snapshot returns a point-in-time view of the scheduler.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running: s.runningLocked(),
		Pending: s.q.live(),
	}
	if due, ok := s.q.peekDueAt(); ok {
		snap.NextDue = due
	}
	if c := s.q.current; c != nil {
		snap.CurrentID = c.id
		snap.CurrentName = c.name
	}
	s.mu.Unlock()

	snap.Executed = s.executed.Load()
	snap.Failed = s.failed.Load()
	snap.Panics = s.panics.Load()
	snap.SkippedTicks = s.skipped.Load()
	snap.Cancelled = s.cancelled.Load()

	s.hmu.Lock()
	if n := s.history.Length(); n > 0 {
		snap.History = make([]HistoryItem, n)
		for i := 0; i < n; i++ {
			snap.History[i] = s.history.Get(i).(HistoryItem)
		}
	}
	s.hmu.Unlock()
	return snap
}

// appendHistory keeps the newest Config.HistorySize items, oldest first.
func (s *Scheduler) appendHistory(item HistoryItem) {
	limit := s.cfg.HistorySize
	if limit <= 0 {
		return
	}
	s.hmu.Lock()
	defer s.hmu.Unlock()
	for s.history.Length() >= limit {
		s.history.Remove()
	}
	s.history.Add(item)
}
