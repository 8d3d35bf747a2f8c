// Package exitcode holds the process exit codes of feeload.
package exitcode

const (
	Success       = 0
	UsageError    = 1
	ConfigError   = 2
	DBConnError   = 3
	LocateError   = 4
	PartialFailed = 6 // at least one document failed
	Interrupted   = 7
)
