// this code is from https://github.com/pzhzqt/goostub
// there is license and copyright notice in licenses/goostub dir

package common

import (
	"time"
)

var CycleDetectionInterval time.Duration
var EnableDebug bool = false

// when true, latches returned by NewRWLatch detect lock cycles via go-deadlock
var EnableDeadlockDetection bool = false

const (
	// invalid page id
	InvalidPageID = -1
	// size of a data page in byte
	PageSize = 4096
	// number of sharded worker threads the disk scheduler spawns
	NumDiskScheduleWorkers = 4
)
