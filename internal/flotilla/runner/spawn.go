package runner

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// killGracePeriod is how long a stopped child gets to exit after SIGTERM
// before it is killed outright.
const killGracePeriod = 10 * time.Second

// ChildCommand describes one test process.
type ChildCommand struct {
	// Path of the executable to run.
	Path string
	// Args is the argument list, excluding argv[0].
	Args []string
	// Dir is the working directory the process starts in.
	Dir string
	// Env is the complete environment of the process.
	Env []string
	// Output receives combined stdout and stderr.
	Output io.Writer
}

// Spawner starts test processes and waits for them. A nonzero exit code is a
// test observation, not an error; a non nil error means the process could
// not be run to completion at all.
type Spawner interface {
	Spawn(ctx context.Context, cmd ChildCommand) (int, error)
}

type execSpawner struct{}

// NewSpawner returns a Spawner backed by real processes. When ctx is
// cancelled mid run the child is sent SIGTERM, reaped, and ctx's error is
// returned.
func NewSpawner() Spawner {
	return execSpawner{}
}

func (execSpawner) Spawn(ctx context.Context, c ChildCommand) (int, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Output
	cmd.Stderr = c.Output
	if err := cmd.Start(); err != nil {
		return 0, errors.WithStack(err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return exitCode(err)
	case <-ctx.Done():
	}

	name := filepath.Base(c.Path)
	log.Infof("stopping %s (pid %d)", name, cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warnf("could not signal %s (pid %d): %v", name, cmd.Process.Pid, err)
	}
	select {
	case <-waitCh:
	case <-time.After(killGracePeriod):
		log.Warnf("%s (pid %d) ignored SIGTERM, killing it", name, cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-waitCh
	}
	return 0, ctx.Err()
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, errors.WithStack(err)
}
