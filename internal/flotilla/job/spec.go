// Package job defines the stress test jobs the fleet schedules: which
// executable to run, against how much data, and in which variant.
package job

import (
	"fmt"
	"sync/atomic"
	"time"
)

// SeedKind names which saved environment seeds an upgrade run.
type SeedKind string

const (
	SeedPristine SeedKind = "pristine"
	SeedStressed SeedKind = "stressed"
)

// Phase names the lifecycle step a run was in, used when attributing
// failures and naming archives.
type Phase string

const (
	PhaseCreate  Phase = "create"
	PhaseStress  Phase = "stress"
	PhaseTest    Phase = "test"
	PhaseRecover Phase = "recover"
)

// Variant describes how a job differs from the plain create+stress shape.
// The zero value is exactly that plain shape.
type Variant struct {
	// CrashRecovery runs the executable in a mode where it is expected to
	// crash itself, then verifies that recovery works.
	CrashRecovery bool
	// UpgradeFrom is the old release whose saved environment seeds the
	// run. Empty for non-upgrade jobs.
	UpgradeFrom string
	// Seed selects the pristine or stressed saved environment of an
	// upgrade run.
	Seed SeedKind
	// Double runs the execute phase twice against the same environment,
	// so the second pass exercises the state the first one left behind.
	Double bool
}

// Upgrade reports whether the variant seeds from an old release.
func (v Variant) Upgrade() bool { return v.UpgradeFrom != "" }

func (v Variant) label() string {
	label := "stress"
	if v.CrashRecovery {
		label = "recover-" + label
	}
	if v.Upgrade() {
		label = "upgrade-" + label
	}
	if v.Double {
		label = "double-" + label
	}
	return label
}

// Spec describes one schedulable job. Specs are shared between the backlog
// and workers; every field is immutable after construction except the run
// counter.
type Spec struct {
	Executable string
	// TableSize is the number of elements the environment is created with.
	TableSize int64
	// CacheSize is the cachetable size handed to the executable.
	CacheSize int64
	// Large jobs count against the scheduler's large-job ceiling.
	Large   bool
	Variant Variant

	runs atomic.Int64
}

// NextRun returns the zero based sequence number of a new run of this job.
// Safe to call from any worker.
func (s *Spec) NextRun() int64 {
	return s.runs.Add(1) - 1
}

// OldVersionString renders the upgrade provenance the way report lines
// expect it: "<version>-<seed>" for upgrade jobs, "noupgrade" otherwise.
func (s *Spec) OldVersionString() string {
	if !s.Variant.Upgrade() {
		return "noupgrade"
	}
	return fmt.Sprintf("%s-%s", s.Variant.UpgradeFrom, s.Variant.Seed)
}

func (s *Spec) String() string {
	return fmt.Sprintf("%s<%s, %d, %d, %s>",
		s.Variant.label(), s.Executable, s.TableSize, s.CacheSize, s.OldVersionString())
}

// Outcome classifies a finished run.
type Outcome int

const (
	// OutcomePassed means every phase completed as expected.
	OutcomePassed Outcome = iota
	// OutcomeFailed means some phase misbehaved and artifacts were kept.
	OutcomeFailed
	// OutcomeKilled means a stop signal interrupted the run; it says
	// nothing about the test and is never reported.
	OutcomeKilled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeKilled:
		return "killed"
	}
	return fmt.Sprintf("unknown(%d)", int(o))
}

// Result captures everything reporting needs about a finished run.
type Result struct {
	Job *Spec
	// ID correlates the run's log lines, scratch directory, and archive.
	ID       string
	Run      int64
	Revision string
	Outcome  Outcome
	// FailedPhase is set when Outcome is OutcomeFailed.
	FailedPhase Phase
	// Thread counts the run actually used, derived once at run start.
	QueryThreads  int
	UpdateThreads int
	// Elapsed is the wall clock duration of the execute phase, zero when
	// the run never reached it.
	Elapsed time.Duration
	// ArchiveDir is where failure artifacts were preserved, when any were.
	ArchiveDir string
}
