package common

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets up the process-wide logger. Reports of passing and
// failing runs additionally go to the report file, which has its own writer.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}
