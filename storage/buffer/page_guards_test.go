package buffer

import (
	"testing"

	"github.com/mkobaru/KawasemiDB/storage/disk"
	"github.com/mkobaru/KawasemiDB/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardTestBPM(t *testing.T, poolSize uint32) *BufferPoolManager {
	t.Helper()
	dm := disk.NewVirtualDiskManagerImpl("guard_test.db")
	bpm := NewBufferPoolManager(poolSize, dm, 2)
	t.Cleanup(func() {
		bpm.ShutDown()
		dm.ShutDown()
	})
	return bpm
}

func pinCountOf(bpm *BufferPoolManager, pageID types.PageID) int32 {
	bpm.globalLatch.RLock()
	defer bpm.globalLatch.RUnlock()
	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return -1
	}
	return bpm.pages[frameID].PinCount()
}

func TestBasicPageGuard(t *testing.T) {
	bpm := newGuardTestBPM(t, 3)

	pageID, guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	assert.Equal(t, types.PageID(0), pageID)
	assert.Equal(t, int32(1), pinCountOf(bpm, pageID))

	copy(guard.DataMut()[:], "guarded")
	guard.Drop()
	assert.Equal(t, int32(0), pinCountOf(bpm, pageID))

	// a dropped guard stays dropped
	guard.Drop()
	assert.Equal(t, int32(0), pinCountOf(bpm, pageID))

	// the page is still resident, so fetching it again sees the bytes
	// written through DataMut
	fetched := bpm.FetchPageBasic(pageID)
	require.NotNil(t, fetched)
	assert.Equal(t, "guarded", string(fetched.Data()[:7]))
	fetched.Drop()
}

func TestReadPageGuard(t *testing.T) {
	bpm := newGuardTestBPM(t, 3)

	pageID, guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	copy(guard.DataMut()[:], "shared read")
	guard.Drop()

	first := bpm.FetchPageRead(pageID)
	require.NotNil(t, first)
	// a second shared guard on the same page must not block
	second := bpm.FetchPageRead(pageID)
	require.NotNil(t, second)

	assert.Equal(t, "shared read", string(first.Data()[:11]))
	assert.Equal(t, int32(2), pinCountOf(bpm, pageID))

	first.Drop()
	second.Drop()
	second.Drop()
	assert.Equal(t, int32(0), pinCountOf(bpm, pageID))
}

func TestWritePageGuard(t *testing.T) {
	bpm := newGuardTestBPM(t, 3)

	pageID, guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	guard.Drop()

	writer := bpm.FetchPageWrite(pageID)
	require.NotNil(t, writer)
	copy(writer.DataMut()[:], "exclusive")

	released := make(chan struct{})
	go func() {
		reader := bpm.FetchPageRead(pageID)
		assert.Equal(t, "exclusive", string(reader.Data()[:9]))
		reader.Drop()
		close(released)
	}()

	writer.Drop()
	<-released
	assert.Equal(t, int32(0), pinCountOf(bpm, pageID))
}

func TestGuardFactoriesOnExhaustedPool(t *testing.T) {
	bpm := newGuardTestBPM(t, 1)

	_, guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)

	pageID, failed := bpm.NewPageGuarded()
	assert.Nil(t, failed)
	assert.Equal(t, types.InvalidPageID, pageID)
	assert.Nil(t, bpm.FetchPageBasic(types.PageID(50)))
	assert.Nil(t, bpm.FetchPageRead(types.PageID(50)))
	assert.Nil(t, bpm.FetchPageWrite(types.PageID(50)))

	guard.Drop()
	fetched := bpm.FetchPageBasic(types.PageID(50))
	require.NotNil(t, fetched)
	fetched.Drop()
}
