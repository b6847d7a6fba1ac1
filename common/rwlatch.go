// this code is from https://github.com/pzhzqt/goostub
// there is license and copyright notice in licenses/goostub dir

package common

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

type ReaderWriterLatch interface {
	WLock()
	WUnlock()
	RLock()
	RUnlock()
}

type readerWriterLatch struct {
	mutex *sync.RWMutex
}

// NewRWLatch returns a latch backed by sync.RWMutex, or by a
// deadlock-detecting mutex when EnableDeadlockDetection is set
func NewRWLatch() ReaderWriterLatch {
	if EnableDeadlockDetection {
		deadlock.Opts.DeadlockTimeout = CycleDetectionInterval
		return &readerWriterLatchDeadlock{new(deadlock.RWMutex)}
	}
	latch := readerWriterLatch{}
	latch.mutex = new(sync.RWMutex)

	return &latch
}

func (l *readerWriterLatch) WLock() {
	l.mutex.Lock()
}

func (l *readerWriterLatch) WUnlock() {
	l.mutex.Unlock()
}

func (l *readerWriterLatch) RLock() {
	l.mutex.RLock()
}

func (l *readerWriterLatch) RUnlock() {
	l.mutex.RUnlock()
}

type readerWriterLatchDeadlock struct {
	mutex *deadlock.RWMutex
}

func (l *readerWriterLatchDeadlock) WLock() {
	l.mutex.Lock()
}

func (l *readerWriterLatchDeadlock) WUnlock() {
	l.mutex.Unlock()
}

func (l *readerWriterLatchDeadlock) RLock() {
	l.mutex.RLock()
}

func (l *readerWriterLatchDeadlock) RUnlock() {
	l.mutex.RUnlock()
}
