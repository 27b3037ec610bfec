package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const stacktraceField = "stacktrace"

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Unexported but considered part of the stable interface of pkg/errors.
type causer interface {
	Cause() error
}

// WithStacktrace adds err and, when one is attached, its stack trace as
// fields on the provided logrus.Entry.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := extractStack(err); stack != nil {
		logger = logger.WithField(stacktraceField, stack)
	}
	return logger
}

// extractStack walks the error chain and returns the first errors.StackTrace
// it finds, or nil when there is none.
func extractStack(err error) errors.StackTrace {
	if stackErr, ok := err.(stackTracer); ok {
		return stackErr.StackTrace()
	}
	if causeErr, ok := err.(causer); ok {
		return extractStack(causeErr.Cause())
	}
	return nil
}
