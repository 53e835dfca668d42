package util

import (
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the logger for everything outside of core, which never
// logs.
var Log = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true},
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.InfoLevel,
}

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf logs at debug level and Log's level
// is lowered so those lines appear.
var Logging = false

// SetLogging sets Logging and adjusts Log's level.
func SetLogging(on bool) {
	Logging = on
	if on {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// Logf is a silly utility function that calls Log.Debugf if Logging
// is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	Log.Debugf(format, args...)
}

// alphabet is used by Gensym.
var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Gensym makes a random string of the given length.
//
// Since we're returning a string and not (somehow a symbol), should
// be named something else.
func Gensym(n int) string {
	bs := make([]byte, n)
	for i := 0; i < len(bs); i++ {
		bs[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(bs)
}
