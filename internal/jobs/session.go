package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// autoFlushIdle is how long an ingestion session must go without a new
// write before it's eligible for auto-flush.
const autoFlushIdle = 2 * time.Second

// Phase is an IngestionSession's lifecycle stage.
type Phase int32

const (
	PhaseWriting Phase = iota
	PhaseProcessing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWriting:
		return "writing"
	case PhaseProcessing:
		return "processing"
	default:
		return "done"
	}
}

// Progress is a snapshot of an IngestionSession's counters, for a status
// endpoint to report back to a bulk-ingestion caller.
type Progress struct {
	Phase                 Phase
	WritesCompleted       int
	WritesTotal           int
	ProposeCuesCompleted  int
	TrainLexiconCompleted int
	UpdateGraphCompleted  int
}

// IngestionSession batches the per-memory jobs a bulk write produces
// (ProposeCues, TrainLexicon, UpdateGraph) so they run once, in strict
// order, after the writes that produced them are all durable — rather
// than interleaving background work with an in-flight batch.
//
// Grounded on original_source/src/jobs.rs's IngestionSession: phase is a
// three-state machine (Writing -> Processing -> Done) advanced by
// compare-and-swap so a concurrent Flush and ExpectWrite can't race each
// other into an inconsistent state.
type IngestionSession struct {
	ProjectID string

	phase           int32 // Phase, atomic
	writesCompleted int64
	writesTotal     int64

	mu                  sync.Mutex
	pendingProposeCues  []ProposeCuesJob
	pendingTrainLexicon []TrainLexiconJob
	pendingUpdateGraph  []UpdateGraphJob
	lastWrite           time.Time

	proposeCuesCompleted  int64
	trainLexiconCompleted int64
	updateGraphCompleted  int64

	clock func() time.Time
}

// NewIngestionSession constructs a session in PhaseWriting with zeroed
// counters.
func NewIngestionSession(projectID string) *IngestionSession {
	return &IngestionSession{
		ProjectID: projectID,
		lastWrite: time.Now(),
		clock:     time.Now,
	}
}

func (s *IngestionSession) GetPhase() Phase {
	return Phase(atomic.LoadInt32(&s.phase))
}

func (s *IngestionSession) GetProgress() Progress {
	return Progress{
		Phase:                 s.GetPhase(),
		WritesCompleted:       int(atomic.LoadInt64(&s.writesCompleted)),
		WritesTotal:           int(atomic.LoadInt64(&s.writesTotal)),
		ProposeCuesCompleted:  int(atomic.LoadInt64(&s.proposeCuesCompleted)),
		TrainLexiconCompleted: int(atomic.LoadInt64(&s.trainLexiconCompleted)),
		UpdateGraphCompleted:  int(atomic.LoadInt64(&s.updateGraphCompleted)),
	}
}

// BufferJob records job for later processing. Job kinds this session
// doesn't batch are silently dropped — callers route those through
// Queue.Enqueue instead.
func (s *IngestionSession) BufferJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWrite = s.clock()

	switch j := job.(type) {
	case ProposeCuesJob:
		s.pendingProposeCues = append(s.pendingProposeCues, j)
	case TrainLexiconJob:
		s.pendingTrainLexicon = append(s.pendingTrainLexicon, j)
	case UpdateGraphJob:
		s.pendingUpdateGraph = append(s.pendingUpdateGraph, j)
	}
}

// ExpectWrite reactivates the session (it may have been Done or
// Processing) and records one more write as expected.
func (s *IngestionSession) ExpectWrite() {
	atomic.StoreInt32(&s.phase, int32(PhaseWriting))
	atomic.AddInt64(&s.writesTotal, 1)
}

// WriteComplete records one write as finished.
func (s *IngestionSession) WriteComplete() {
	atomic.AddInt64(&s.writesCompleted, 1)
}

// ShouldAutoFlush reports whether every expected write has completed and
// autoFlushIdle has elapsed since the last one, the signal the
// SessionManager's background loop uses to flush without an explicit
// caller-driven trigger.
func (s *IngestionSession) ShouldAutoFlush() bool {
	s.mu.Lock()
	last := s.lastWrite
	s.mu.Unlock()

	done := atomic.LoadInt64(&s.writesCompleted)
	expected := atomic.LoadInt64(&s.writesTotal)
	return done >= expected && expected > 0 && s.clock().Sub(last) >= autoFlushIdle
}

// IsStale reports whether the session has finished (PhaseDone) at least
// one write's worth of work and can be reclaimed; a fresh ExpectWrite
// call will allocate a new session on demand, so nothing is lost by
// dropping it.
func (s *IngestionSession) IsStale() bool {
	return s.GetPhase() == PhaseDone && atomic.LoadInt64(&s.writesTotal) > 0
}

// Flush drains every buffered job and runs them in order (ProposeCues,
// then TrainLexicon, then UpdateGraph), transitioning Writing->Processing
// first and Processing->Done last. If the phase isn't Writing when called
// (e.g. a concurrent flush already claimed it), Flush is a no-op. If
// ExpectWrite fires during processing, the final CAS to Done fails and
// the session is correctly left in Writing for the next flush to pick up.
func (s *IngestionSession) Flush(ctx context.Context, provider Provider) {
	if !atomic.CompareAndSwapInt32(&s.phase, int32(PhaseWriting), int32(PhaseProcessing)) {
		return
	}

	s.mu.Lock()
	proposeCues := s.pendingProposeCues
	trainLexicon := s.pendingTrainLexicon
	updateGraph := s.pendingUpdateGraph
	s.pendingProposeCues = nil
	s.pendingTrainLexicon = nil
	s.pendingUpdateGraph = nil
	s.mu.Unlock()

	for _, j := range proposeCues {
		processJob(ctx, j, provider)
		atomic.AddInt64(&s.proposeCuesCompleted, 1)
	}
	for _, j := range trainLexicon {
		processJob(ctx, j, provider)
		atomic.AddInt64(&s.trainLexiconCompleted, 1)
	}
	for _, j := range updateGraph {
		processJob(ctx, j, provider)
		atomic.AddInt64(&s.updateGraphCompleted, 1)
	}

	atomic.CompareAndSwapInt32(&s.phase, int32(PhaseProcessing), int32(PhaseDone))
}

// SessionManager owns one IngestionSession per project and drives
// periodic auto-flush + stale cleanup.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*IngestionSession
	provider Provider
}

// NewSessionManager constructs an empty SessionManager.
func NewSessionManager(provider Provider) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*IngestionSession),
		provider: provider,
	}
}

// GetOrCreate returns the session for projectID, creating one if absent.
func (m *SessionManager) GetOrCreate(projectID string) *IngestionSession {
	m.mu.RLock()
	s, ok := m.sessions[projectID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[projectID]; ok {
		return s
	}
	s = NewIngestionSession(projectID)
	m.sessions[projectID] = s
	return s
}

// Get returns the session for projectID without creating it.
func (m *SessionManager) Get(projectID string) (*IngestionSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[projectID]
	return s, ok
}

// FlushSession flushes projectID's session if one exists.
func (m *SessionManager) FlushSession(ctx context.Context, projectID string) {
	if s, ok := m.Get(projectID); ok {
		s.Flush(ctx, m.provider)
	}
}

// autoFlushCleanupEvery is the number of autoFlushTick intervals between
// stale-session sweeps (30 * 2s = 60s), matching the original's cadence.
const autoFlushCleanupEvery = 30

// autoFlushTick is how often the background loop checks for sessions
// ready to flush.
const autoFlushTick = 2 * time.Second

// RunAutoFlush runs the periodic flush/cleanup loop until ctx is
// cancelled. Call it in its own goroutine.
func (m *SessionManager) RunAutoFlush(ctx context.Context) {
	ticker := time.NewTicker(autoFlushTick)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flushDue(ctx)

			ticks++
			if ticks >= autoFlushCleanupEvery {
				ticks = 0
				m.cleanupStale()
			}
		}
	}
}

func (m *SessionManager) flushDue(ctx context.Context) {
	m.mu.RLock()
	due := make([]*IngestionSession, 0)
	for _, s := range m.sessions {
		if s.GetPhase() == PhaseWriting && s.ShouldAutoFlush() {
			due = append(due, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range due {
		s.Flush(ctx, m.provider)
	}
}

func (m *SessionManager) cleanupStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.IsStale() {
			delete(m.sessions, id)
		}
	}
}
