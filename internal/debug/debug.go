// Package debug provides protocol tracing controlled by the
// WAYLAND_DEBUG environment variable.
package debug

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug = func(string, ...any) {}

func init() {
	debugLevel, err := strconv.ParseInt(os.Getenv("WAYLAND_DEBUG"), 10, 0)
	if err != nil {
		return
	}
	if debugLevel > 0 {
		log := logrus.New()
		log.SetLevel(logrus.DebugLevel)
		entry := log.WithField("component", "wire")
		debug = func(str string, args ...any) { entry.Debugf(str, args...) }
	}
}

func Printf(str string, args ...any) {
	debug(str, args...)
}
