// Package rebuild refreshes the system under test between scheduler cycles:
// sync the source tree, check the toolchain, rebuild the test executables,
// and report the tree's revision.
package rebuild

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Builder refreshes the system under test and reports its revision.
type Builder interface {
	Build(ctx context.Context) error
	Revision(ctx context.Context) (string, error)
}

// Params configures a CommandBuilder.
type Params struct {
	SourceDir  string
	BuildDir   string
	InstallDir string
	// Compiler is probed before building. "icc" switches the configure
	// step to the Intel toolchain.
	Compiler string
	// Targets are the make targets to build, one per test executable.
	Targets []string

	SyncCommand     []string
	RevisionCommand []string
}

// CommandBuilder drives the checkout's own toolchain. The command slices are
// exported so tests can substitute harmless executables.
type CommandBuilder struct {
	Params

	ConfigureCommand []string
	BuildCommand     []string
}

func NewCommandBuilder(params Params) *CommandBuilder {
	intel := "OFF"
	if params.Compiler == "icc" {
		intel = "ON"
	}
	return &CommandBuilder{
		Params: params,
		ConfigureCommand: []string{
			"cmake",
			"-DCMAKE_BUILD_TYPE=Debug",
			"-DINTEL_CC=" + intel,
			"-DCMAKE_INSTALL_DIR=" + params.InstallDir,
			params.SourceDir,
		},
		BuildCommand: append([]string{"make", "-s"}, params.Targets...),
	}
}

// Build syncs the source tree and rebuilds the test executables. Output of
// the failing step is included in the error.
func (b *CommandBuilder) Build(ctx context.Context) error {
	log.Infof("syncing %s", b.SourceDir)
	if out, err := b.run(ctx, b.SourceDir, b.SyncCommand); err != nil {
		return errors.WithMessagef(err, "sync failed: %s", out)
	}
	if out, err := b.run(ctx, b.SourceDir, []string{b.Compiler, "-v"}); err != nil {
		return errors.WithMessagef(err, "cannot find working compiler %q: %s", b.Compiler, out)
	}
	if err := os.MkdirAll(b.BuildDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	log.Infof("building %d test executables", len(b.Targets))
	if out, err := b.run(ctx, b.BuildDir, b.ConfigureCommand); err != nil {
		return errors.WithMessagef(err, "configure failed: %s", out)
	}
	if out, err := b.run(ctx, b.BuildDir, b.BuildCommand); err != nil {
		return errors.WithMessagef(err, "build failed: %s", out)
	}
	return nil
}

// Revision asks the source tree for its current revision. Retries a few
// times since SCM metadata can be briefly unavailable right after a sync.
func (b *CommandBuilder) Revision(ctx context.Context) (string, error) {
	var rev string
	err := retry.Do(
		func() error {
			out, err := b.run(ctx, b.SourceDir, b.RevisionCommand)
			if err != nil {
				return err
			}
			rev = strings.TrimSpace(out)
			if rev == "" {
				return errors.New("revision command produced no output")
			}
			return nil
		},
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	return rev, err
}

func (b *CommandBuilder) run(ctx context.Context, dir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.WithStack(err)
	}
	log.Debugf("%s: %s", strings.Join(argv, " "), strings.TrimSpace(string(out)))
	return string(out), nil
}
