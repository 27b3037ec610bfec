// Package scheduler drives a fixed pool of workers over a shared, requeueing
// backlog of stress test jobs. Jobs are never consumed: a finished job goes
// back into the backlog so the fleet keeps testing until stopped.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flotillaproject/flotilla/internal/common/logging"
	"github.com/flotillaproject/flotilla/internal/flotilla/job"
)

// Executor runs a single job once. A nil error covers passed, failed, and
// killed runs alike; an error means the harness itself broke.
type Executor interface {
	Execute(ctx context.Context, spec *job.Spec, revision string) (*job.Result, error)
}

// Reporter records finished runs together with the running totals.
type Reporter interface {
	ReportPassed(res *job.Result, passed, failed uint64)
	ReportFailed(res *job.Result, passed, failed uint64)
}

// Scheduler owns the backlog and the worker pool. The caller runs cycles;
// between cycles it rebuilds the system under test and refreshes the
// revision stamped on new runs.
type Scheduler struct {
	executor Executor
	reporter Reporter
	nworkers int
	maxLarge int64

	jobs    []*job.Spec
	backlog chan *job.Spec
	rng     *rand.Rand

	mu          sync.Mutex
	revision    string
	cancelCycle context.CancelFunc

	nlarge atomic.Int64
	passed atomic.Uint64
	failed atomic.Uint64
}

// New builds a scheduler over jobs. nworkers workers run concurrently, at
// most maxLarge of them on large jobs at any one time.
func New(executor Executor, reporter Reporter, jobs []*job.Spec, nworkers, maxLarge int, rng *rand.Rand) *Scheduler {
	log.Infof("initializing scheduler with %d workers over %d jobs", nworkers, len(jobs))
	return &Scheduler{
		executor: executor,
		reporter: reporter,
		nworkers: nworkers,
		maxLarge: int64(maxLarge),
		jobs:     jobs,
		backlog:  make(chan *job.Spec, len(jobs)),
		rng:      rng,
	}
}

// RunCycle reseeds the backlog and runs the worker pool until timeout
// elapses, ctx is cancelled, or a worker reports a harness failure. A zero
// timeout runs until stopped. Workers finish their run in flight before the
// cycle returns.
func (s *Scheduler) RunCycle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelCycle = cancel
	s.mu.Unlock()

	s.reseed()
	if timeout > 0 {
		stop := time.AfterFunc(timeout, func() {
			log.Infof("cycle ran for %s, stopping workers", timeout)
			cancel()
		})
		defer stop.Stop()
	}

	log.Infof("starting %d workers", s.nworkers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.nworkers; i++ {
		worker := i
		g.Go(func() error {
			return s.runWorker(gctx, worker)
		})
	}
	err := g.Wait()

	s.mu.Lock()
	s.cancelCycle = nil
	s.mu.Unlock()
	return err
}

// RequestStop stops the cycle in flight, if any. Safe to call at any time,
// from any goroutine.
func (s *Scheduler) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelCycle != nil {
		log.Info("stopping workers")
		s.cancelCycle()
	}
}

// SetRevision changes the revision stamped on runs dequeued from now on.
// Runs already in flight keep the revision they started with.
func (s *Scheduler) SetRevision(rev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision = rev
}

// Revision returns the revision currently stamped on new runs.
func (s *Scheduler) Revision() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Totals returns the pass and fail counts accumulated across all cycles.
func (s *Scheduler) Totals() (passed, failed uint64) {
	return s.passed.Load(), s.failed.Load()
}

// reseed rebuilds the backlog from the full job list, so every cycle starts
// with the complete set no matter which jobs the previous cycle's workers
// still held when it stopped. Only called between cycles.
func (s *Scheduler) reseed() {
	for len(s.backlog) > 0 {
		<-s.backlog
	}
	s.rng.Shuffle(len(s.jobs), func(i, j int) {
		s.jobs[i], s.jobs[j] = s.jobs[j], s.jobs[i]
	})
	for _, spec := range s.jobs {
		s.backlog <- spec
	}
	backlogSize.Set(float64(len(s.backlog)))
}

func (s *Scheduler) runWorker(ctx context.Context, id int) error {
	logger := log.WithField("worker", id)
	logger.Debug("worker starting")
	defer logger.Debug("worker exiting")

	for {
		spec, ok := s.dequeue(ctx)
		if !ok {
			return nil
		}
		if spec.Large && !s.admitLarge() {
			logger.Debugf("%s pulled while %d large jobs run, putting it back", spec, s.nlarge.Load())
			s.enqueue(spec)
			continue
		}
		err := s.runOne(ctx, spec)
		if spec.Large {
			s.releaseLarge()
		}
		if err != nil {
			logging.WithStacktrace(logger, err).Error("fatal error in worker, stopping the fleet")
			return err
		}
		if ctx.Err() == nil {
			s.enqueue(spec)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, spec *job.Spec) error {
	res, err := s.executor.Execute(ctx, spec, s.Revision())
	if err != nil {
		return err
	}
	s.record(res)
	return nil
}

// record counts the outcome and reports it. A killed run says nothing about
// the test, so it is counted in metrics but never reported.
func (s *Scheduler) record(res *job.Result) {
	runsCounter.WithLabelValues(res.Outcome.String()).Inc()
	switch res.Outcome {
	case job.OutcomePassed:
		runDuration.Observe(res.Elapsed.Seconds())
		s.reporter.ReportPassed(res, s.passed.Add(1), s.failed.Load())
	case job.OutcomeFailed:
		runDuration.Observe(res.Elapsed.Seconds())
		s.reporter.ReportFailed(res, s.passed.Load(), s.failed.Add(1))
	}
}

// dequeue returns the next job, or false when the cycle is stopping. The
// stop check comes first so a full backlog cannot keep a worker going past a
// stop request.
func (s *Scheduler) dequeue(ctx context.Context) (*job.Spec, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case <-ctx.Done():
		return nil, false
	case spec := <-s.backlog:
		backlogSize.Set(float64(len(s.backlog)))
		return spec, true
	}
}

func (s *Scheduler) enqueue(spec *job.Spec) {
	select {
	case s.backlog <- spec:
		backlogSize.Set(float64(len(s.backlog)))
	default:
		// capacity equals the job list, so a put back never blocks; guard
		// anyway rather than risk wedging a worker
		log.Warnf("backlog full, dropping %s until the next reseed", spec)
	}
}

// admitLarge reserves a large job slot. The count never exceeds the ceiling,
// even with every worker racing for the last slot.
func (s *Scheduler) admitLarge() bool {
	if s.nlarge.Add(1) > s.maxLarge {
		s.nlarge.Add(-1)
		return false
	}
	largeRunning.Inc()
	return true
}

func (s *Scheduler) releaseLarge() {
	s.nlarge.Add(-1)
	largeRunning.Dec()
}
