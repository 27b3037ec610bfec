package util

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// CloseResource closes c and logs a warning if closing fails. Meant for use
// in defers where the error has nowhere better to go.
func CloseResource(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("Failed to close %s cleanly", name)
	}
}
