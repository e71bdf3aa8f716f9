package cirjson

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var logger atomic.Pointer[logrus.FieldLogger]

func init() {
	var l logrus.FieldLogger = logrus.StandardLogger()
	logger.Store(&l)
}

// SetLogger replaces the logger used for pool and lifecycle diagnostics.
// Passing nil restores logrus' standard logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger.Store(&l)
}

func log() logrus.FieldLogger {
	return *logger.Load()
}
