// Package runner executes single runs of stress test jobs: prepare a data
// environment, drive the executable through the phases of the job's variant,
// and archive the run's artifacts when a phase misbehaves.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/common/fleeterrors"
	"github.com/flotillaproject/flotilla/internal/common/logging"
	"github.com/flotillaproject/flotilla/internal/common/util"
	"github.com/flotillaproject/flotilla/internal/flotilla/archive"
	"github.com/flotillaproject/flotilla/internal/flotilla/envcache"
	"github.com/flotillaproject/flotilla/internal/flotilla/job"
)

// Config carries the paths and knobs shared by every run.
type Config struct {
	// BuildDir is the build tree; test executables live under src/tests.
	BuildDir string
	// InstallDir holds the installed engine; its lib directory goes on
	// LD_LIBRARY_PATH of every child.
	InstallDir string
	// OldEnvironmentsDir holds saved environments of old releases, one
	// subdirectory per version. Only consulted for upgrade jobs.
	OldEnvironmentsDir string
	// TestDuration is how long each stress phase runs.
	TestDuration time.Duration
	// Jemalloc optionally names a jemalloc build to LD_PRELOAD.
	Jemalloc string
}

// Runner executes runs. A single Runner serves all workers concurrently; the
// mutable state of a run in flight lives in a per call value.
type Runner struct {
	cfg      Config
	env      []string
	spawner  Spawner
	archiver *archive.Archiver
	cache    *envcache.Cache
	rng      *rand.Rand
	clock    util.Clock
}

func New(cfg Config, spawner Spawner, archiver *archive.Archiver, cache *envcache.Cache, rng *rand.Rand) *Runner {
	return &Runner{
		cfg:      cfg,
		env:      testEnv(cfg.InstallDir, cfg.Jemalloc),
		spawner:  spawner,
		archiver: archiver,
		cache:    cache,
		rng:      rng,
		clock:    &util.DefaultClock{},
	}
}

// state is the mutable state of one run in flight.
type state struct {
	spec     *job.Spec
	id       string
	seq      int64
	revision string

	rundir string
	envdir string
	outf   *os.File

	queryThreads  int
	updateThreads int
	phase         job.Phase
	elapsed       time.Duration
}

// testFailure marks a phase that misbehaved. It travels as an error so the
// variant strategies compose, but it means "archive and report", never "stop
// the fleet".
type testFailure struct {
	phase job.Phase
	msg   string
}

func (e *testFailure) Error() string { return e.msg }

func failf(phase job.Phase, format string, args ...interface{}) error {
	return &testFailure{phase: phase, msg: fmt.Sprintf(format, args...)}
}

// Execute performs one full run of spec and reports what happened. The
// returned error is nil for passed, failed, and killed runs alike; a non nil
// error means the harness itself broke and the fleet should stop.
func (r *Runner) Execute(ctx context.Context, spec *job.Spec, revision string) (*job.Result, error) {
	st := &state{
		spec:     spec,
		id:       util.NewULID(),
		seq:      spec.NextRun(),
		revision: revision,
	}
	st.queryThreads = r.threadCount(st.seq%2 >= 1)
	st.updateThreads = r.threadCount(st.seq%4 >= 2)

	result := &job.Result{
		Job:           spec,
		ID:            st.id,
		Run:           st.seq,
		Revision:      revision,
		QueryThreads:  st.queryThreads,
		UpdateThreads: st.updateThreads,
	}

	rundir := filepath.Join(r.scratchRoot(), "run-"+st.id)
	if err := os.Mkdir(rundir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	st.rundir = rundir
	st.envdir = filepath.Join(rundir, "envdir")
	defer func() {
		if st.outf != nil {
			util.CloseResource("run output", st.outf)
		}
		if err := os.RemoveAll(rundir); err != nil {
			log.Warnf("could not remove scratch directory %s: %v", rundir, err)
		}
	}()

	outf, err := os.Create(filepath.Join(rundir, "output.txt"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	st.outf = outf

	err = r.runPhases(ctx, st)
	result.Elapsed = st.elapsed

	switch {
	case err == nil:
		log.Debugf("%s run %d done", spec, st.seq)
		result.Outcome = job.OutcomePassed
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		log.Debugf("%s run %d interrupted by shutdown", spec, st.seq)
		result.Outcome = job.OutcomeKilled
	default:
		var failure *testFailure
		if !errors.As(err, &failure) {
			return nil, err
		}
		log.Warnf("%s: %s", spec, failure.msg)
		result.Outcome = job.OutcomeFailed
		result.FailedPhase = failure.phase
		result.ArchiveDir = r.archiveFailure(st)
	}
	return result, nil
}

func (r *Runner) runPhases(ctx context.Context, st *state) error {
	if err := r.prepare(ctx, st); err != nil {
		return err
	}
	log.Debugf("%s testing", st.spec)
	started := r.clock.Now()
	err := r.executePhase(ctx, st)
	st.elapsed = r.clock.Now().Sub(started)
	return err
}

// prepare fills st.envdir. Upgrade runs copy a saved environment of an old
// release and never touch the shared cache; everything else reuses a cached
// environment or creates one and caches it for later runs.
func (r *Runner) prepare(ctx context.Context, st *state) error {
	if st.spec.Variant.Upgrade() {
		return r.seedOldEnvironment(st)
	}
	key := envcache.Key{
		Executable: st.spec.Executable,
		TableSize:  st.spec.TableSize,
		CacheSize:  st.spec.CacheSize,
	}
	return r.cache.Provide(st.envdir, key, func() error {
		return r.create(ctx, st)
	})
}

// create runs the executable's create-only mode to build a fresh envdir.
// Crash-recovery jobs create with --test so the environment matches what
// their stress phase expects.
func (r *Runner) create(ctx context.Context, st *state) error {
	st.phase = job.PhaseCreate
	mode := []string{"--only_create"}
	if st.spec.Variant.CrashRecovery {
		mode = append(mode, "--test")
	}
	code, err := r.spawn(ctx, st, append(mode, r.prepareArgs(st)...))
	if err != nil {
		return err
	}
	if code != 0 {
		return failf(job.PhaseCreate, "%s crashed during %s", st.spec.Executable, strings.Join(mode, " "))
	}
	return nil
}

// seedOldEnvironment copies a saved environment of an old release into the
// scratch directory. Saved environments are externally provided and
// immutable, so nothing is ever written back.
func (r *Runner) seedOldEnvironment(st *state) error {
	st.phase = job.PhaseCreate
	v := st.spec.Variant
	src := filepath.Join(r.cfg.OldEnvironmentsDir, v.UpgradeFrom,
		fmt.Sprintf("saved%s-%d-dir", v.Seed, st.spec.TableSize))
	if _, err := os.Stat(src); err != nil {
		return errors.WithStack(&fleeterrors.ErrNotFound{
			Type:    "saved environment",
			Value:   src,
			Message: "environments of old releases must be provided externally",
		})
	}
	log.Debugf("%s seeding environment from %s", st.spec, src)
	return util.CopyDir(src, st.envdir)
}

// executePhase runs the job's stress phase, twice for Double variants. The
// second pass exercises the state the first one left behind.
func (r *Runner) executePhase(ctx context.Context, st *state) error {
	passes := 1
	if st.spec.Variant.Double {
		passes = 2
	}
	for i := 0; i < passes; i++ {
		var err error
		if st.spec.Variant.CrashRecovery {
			err = r.crashAndRecover(ctx, st)
		} else {
			err = r.stress(ctx, st)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// stress runs the plain stress mode, which must exit cleanly.
func (r *Runner) stress(ctx context.Context, st *state) error {
	st.phase = job.PhaseStress
	code, err := r.spawn(ctx, st, append([]string{"--only_stress"}, r.testArgs(st)...))
	if err != nil {
		return err
	}
	if code != 0 {
		return failf(job.PhaseStress, "%s crashed during --only_stress", st.spec.Executable)
	}
	return nil
}

// crashAndRecover runs the stress mode that is expected to crash itself,
// then verifies that recovery brings the environment back.
func (r *Runner) crashAndRecover(ctx context.Context, st *state) error {
	st.phase = job.PhaseTest
	code, err := r.spawn(ctx, st, append([]string{"--only_stress", "--test"}, r.testArgs(st)...))
	if err != nil {
		return err
	}
	if code == 0 {
		return failf(job.PhaseTest, "%s did not crash during --only_stress --test", st.spec.Executable)
	}
	st.phase = job.PhaseRecover
	code, err = r.spawn(ctx, st, append([]string{"--recover"}, r.prepareArgs(st)...))
	if err != nil {
		return err
	}
	if code != 0 {
		return failf(job.PhaseRecover, "%s crashed during --recover", st.spec.Executable)
	}
	return nil
}

// spawn starts the job's executable with args in the scratch directory and
// waits for it, appending the command line to the commands.txt audit trail.
func (r *Runner) spawn(ctx context.Context, st *state, args []string) (int, error) {
	line := strings.Join(append([]string{st.spec.Executable}, args...), " ")
	log.Debugf("%s spawning %s", st.spec, line)
	if err := appendLine(filepath.Join(st.rundir, "commands.txt"), line); err != nil {
		return 0, err
	}
	return r.spawner.Spawn(ctx, ChildCommand{
		Path:   r.executablePath(st.spec.Executable),
		Args:   args,
		Dir:    st.rundir,
		Env:    r.env,
		Output: st.outf,
	})
}

// archiveFailure saves the run's artifacts and returns the archive
// directory. Archiving problems are logged but never escalate; a partial
// archive beats losing the run entirely.
func (r *Runner) archiveFailure(st *state) string {
	prefix := fmt.Sprintf("%s-%s-%d-%d-%d-%d-%s-",
		st.spec.Executable, st.revision, st.spec.TableSize, st.spec.CacheSize,
		st.queryThreads, st.updateThreads, st.phase)
	dir, err := r.archiver.Save(prefix, st.rundir, r.executablePath(st.spec.Executable),
		filepath.Join(r.cfg.InstallDir, "lib"))
	if err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).
			Warnf("could not archive all artifacts of %s", st.spec)
	}
	if dir != "" {
		log.Warnf("saved failure environment to %s", dir)
	}
	return dir
}

// prepareArgs are the arguments every mode of the executable takes.
func (r *Runner) prepareArgs(st *state) []string {
	args := []string{
		"-v",
		"--envdir", "envdir",
		"--num_elements", strconv.FormatInt(st.spec.TableSize, 10),
		"--cachetable_size", strconv.FormatInt(st.spec.CacheSize, 10),
	}
	if st.spec.Variant.Upgrade() {
		args = append(args, "--num_DBs", "1")
	}
	return args
}

// testArgs extends prepareArgs with the stress mode knobs.
func (r *Runner) testArgs(st *state) []string {
	args := []string{
		"--num_seconds", strconv.Itoa(int(r.cfg.TestDuration / time.Second)),
		"--no-crash_on_operation_failure",
		"--num_ptquery_threads", strconv.Itoa(st.queryThreads),
		"--num_update_threads", strconv.Itoa(st.updateThreads),
	}
	return append(args, r.prepareArgs(st)...)
}

// threadCount is 1 on deterministic runs and a random width up to 15 on the
// others, so single threaded and contended schedules both get coverage.
func (r *Runner) threadCount(randomize bool) int {
	if !randomize {
		return 1
	}
	return r.rng.Intn(16)
}

func (r *Runner) scratchRoot() string {
	return filepath.Join(r.cfg.BuildDir, "src", "tests")
}

func (r *Runner) executablePath(executable string) string {
	return filepath.Join(r.scratchRoot(), executable)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
