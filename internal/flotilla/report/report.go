// Package report appends one line per finished run to the pass/fail report
// file and mirrors each line to the process log with running totals.
package report

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/flotilla/job"
)

// Writer is safe for concurrent use by all workers.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// Open appends to the report file at path, creating it if needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Writer{f: f}, nil
}

func (w *Writer) Close() error {
	return errors.WithStack(w.f.Close())
}

// ReportPassed records a passing run. passed and failed are the fleet's
// running totals including this run.
func (w *Writer) ReportPassed(res *job.Result, passed, failed uint64) {
	info := infoString(res)
	w.append("PASSED " + info)
	log.Infof("[PASS=%d FAIL=%d] PASSED %s", passed, failed, info)
}

// ReportFailed records a failing run.
func (w *Writer) ReportFailed(res *job.Result, passed, failed uint64) {
	info := infoString(res)
	w.append("FAILED " + info)
	log.Warnf("[PASS=%d FAIL=%d] FAILED %s (phase %s)", passed, failed, info, res.FailedPhase)
}

func (w *Writer) append(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.f, line); err != nil {
		log.WithError(err).Error("failed to append to report file")
	}
}

// infoString renders the tab separated fields shared by every report line:
// executable, revision, table size, cachetable size, upgrade provenance,
// query threads, update threads, elapsed seconds.
func infoString(res *job.Result) string {
	return strings.Join([]string{
		res.Job.Executable,
		res.Revision,
		strconv.FormatInt(res.Job.TableSize, 10),
		strconv.FormatInt(res.Job.CacheSize, 10),
		res.Job.OldVersionString(),
		strconv.Itoa(res.QueryThreads),
		strconv.Itoa(res.UpdateThreads),
		strconv.FormatInt(int64(res.Elapsed/time.Second), 10),
	}, "\t")
}
