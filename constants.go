package linmo

import "github.com/linmogo/linmo/internal/constants"

// Re-exported tunables, kept in sync with internal/constants so callers of
// the public API never need to import the internal package directly.
const (
	FTimer            = constants.FTimer
	TickPeriod        = constants.TickPeriod
	NumPriorityLevels = constants.NumPriorityLevels
	SchedIMax         = constants.SchedIMax

	DefaultTaskStackSize = constants.DefaultTaskStackSize
	MinTaskStackSize     = constants.MinTaskStackSize

	MinPipeCapacity = constants.MinPipeCapacity
	MaxPipeCapacity = constants.MaxPipeCapacity
	MinMQCapacity   = constants.MinMQCapacity
	MaxMQCapacity   = constants.MaxMQCapacity

	TimerPoolSize     = constants.TimerPoolSize
	TimerLRUCacheSize = constants.TimerLRUCacheSize
	TimerBatchSize    = constants.TimerBatchSize

	ConsoleRingCapacity = constants.ConsoleRingCapacity
	ConsoleEntrySize    = constants.ConsoleEntrySize

	SemMaxCount = constants.SemMaxCount
)
