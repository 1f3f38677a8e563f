package common

import "log"

// Logf is the engine-wide diagnostic logger. It defaults to log.Printf and may be
// swapped out with SetLogger, e.g. to mute output in tests.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the engine logger. Passing nil installs a no-op logger.
//
// Parameters:
//   - f: the printf-style logging function to install
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
