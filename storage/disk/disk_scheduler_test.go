package disk

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestChannel(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		ch := NewRequestChannel()
		first := &DiskRequest{PageID: 1}
		second := &DiskRequest{PageID: 2}
		ch.Put(first)
		ch.Put(second)
		assert.Same(t, first, ch.Get())
		assert.Same(t, second, ch.Get())
	})

	t.Run("GetBlocksUntilPut", func(t *testing.T) {
		ch := NewRequestChannel()
		got := make(chan *DiskRequest)
		go func() {
			got <- ch.Get()
		}()
		want := &DiskRequest{PageID: 7}
		ch.Put(want)
		assert.Same(t, want, <-got)
	})
}

func TestDiskSchedulerReadWrite(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("scheduler_test.db")
	defer dm.ShutDown()
	scheduler := NewDiskScheduler(dm)

	writeData := make([]byte, common.PageSize)
	readData := make([]byte, common.PageSize)
	copy(writeData, "A test string.")

	writeDone := make(chan bool, 1)
	scheduler.Schedule(&DiskRequest{IsWrite: true, Data: writeData, PageID: 0, Callback: writeDone})
	require.True(t, <-writeDone)

	readDone := make(chan bool, 1)
	scheduler.Schedule(&DiskRequest{IsWrite: false, Data: readData, PageID: 0, Callback: readDone})
	require.True(t, <-readDone)
	assert.Equal(t, writeData, readData)

	scheduler.ShutDown()
}

// all requests for one page id run in submission order, so the last write
// scheduled is the one a later read observes
func TestDiskSchedulerPerPageOrdering(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("scheduler_test.db")
	defer dm.ShutDown()
	scheduler := NewDiskScheduler(dm)

	const rounds = 100
	callbacks := make([]chan bool, 0, rounds)
	for i := 0; i < rounds; i++ {
		data := make([]byte, common.PageSize)
		copy(data, fmt.Sprintf("version %d", i))
		done := make(chan bool, 1)
		callbacks = append(callbacks, done)
		scheduler.Schedule(&DiskRequest{IsWrite: true, Data: data, PageID: 5, Callback: done})
	}
	for _, done := range callbacks {
		require.True(t, <-done)
	}

	readData := make([]byte, common.PageSize)
	readDone := make(chan bool, 1)
	scheduler.Schedule(&DiskRequest{IsWrite: false, Data: readData, PageID: 5, Callback: readDone})
	require.True(t, <-readDone)

	want := fmt.Sprintf("version %d", rounds-1)
	assert.Equal(t, want, string(readData[:len(want)]))

	scheduler.ShutDown()
}

func TestDiskSchedulerManyPagesConcurrently(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("scheduler_test.db")
	defer dm.ShutDown()
	scheduler := NewDiskScheduler(dm)

	const pages = 64
	var wg sync.WaitGroup
	for i := 0; i < pages; i++ {
		wg.Add(1)
		go func(pageID types.PageID) {
			defer wg.Done()
			writeData := make([]byte, common.PageSize)
			copy(writeData, fmt.Sprintf("page %d", pageID))
			done := make(chan bool, 1)
			scheduler.Schedule(&DiskRequest{IsWrite: true, Data: writeData, PageID: pageID, Callback: done})
			assert.True(t, <-done)

			readData := make([]byte, common.PageSize)
			done = make(chan bool, 1)
			scheduler.Schedule(&DiskRequest{IsWrite: false, Data: readData, PageID: pageID, Callback: done})
			assert.True(t, <-done)
			assert.Equal(t, writeData, readData)
		}(types.PageID(i))
	}
	wg.Wait()

	scheduler.ShutDown()
}

// requests scheduled before ShutDown must all execute
func TestDiskSchedulerShutDownDrains(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("scheduler_test.db")
	scheduler := NewDiskScheduler(dm)

	const requests = 50
	callbacks := make([]chan bool, 0, requests)
	for i := 0; i < requests; i++ {
		data := make([]byte, common.PageSize)
		done := make(chan bool, 1)
		callbacks = append(callbacks, done)
		scheduler.Schedule(&DiskRequest{IsWrite: true, Data: data, PageID: types.PageID(i), Callback: done})
	}
	scheduler.ShutDown()

	for _, done := range callbacks {
		assert.True(t, <-done)
	}
	assert.Equal(t, uint64(requests), dm.GetNumWrites())
	dm.ShutDown()
}
