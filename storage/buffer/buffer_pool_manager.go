// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/storage/disk"
	"github.com/mkobaru/KawasemiDB/storage/page"
	"github.com/mkobaru/KawasemiDB/types"
	"golang.org/x/exp/slices"
)

/**
 * BufferPoolManager caches a fixed number of disk pages on memory.
 *
 * Two levels of latching: globalLatch protects the page table, the free
 * list and victim selection; pagesLatches[f] protects frame f's metadata
 * and bytes. Paths that install or remove a page table mapping take
 * globalLatch exclusively and grab the frame latch before letting the
 * global one go, so a frame being handed out can never be picked as a
 * victim in between.
 */
type BufferPoolManager struct {
	poolSize      uint32
	diskScheduler *disk.DiskScheduler
	pages         []*page.Page // index is FrameID
	replacer      *LRUKReplacer
	freeList      []FrameID
	pageTable     map[types.PageID]FrameID
	nextPageID    int32
	globalLatch   common.ReaderWriterLatch
	pagesLatches  []sync.Mutex
}

// NewBufferPoolManager returns a buffer pool manager with every frame on the free list
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, replacerK int) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
		pages[i] = page.NewEmpty()
	}

	replacer := NewLRUKReplacer(poolSize, replacerK)
	return &BufferPoolManager{
		poolSize:      poolSize,
		diskScheduler: disk.NewDiskScheduler(diskManager),
		pages:         pages,
		replacer:      replacer,
		freeList:      freeList,
		pageTable:     make(map[types.PageID]FrameID),
		globalLatch:   common.NewRWLatch(),
		pagesLatches:  make([]sync.Mutex, poolSize),
	}
}

// NewPage allocates a new page id, binds it to a frame and returns the
// pinned, zero-cleared page. Returns InvalidPageID and nil when every frame
// is pinned.
func (b *BufferPoolManager) NewPage() (types.PageID, *page.Page) {
	b.globalLatch.WLock()
	frameID := b.findFreeFrame()
	if frameID == nil {
		b.globalLatch.WUnlock()
		return types.InvalidPageID, nil
	}
	pageID := b.allocatePage()
	b.pageTable[pageID] = *frameID

	b.pagesLatches[*frameID].Lock()
	common.SH_Assert(b.replacer.RecordAccess(*frameID, AccessTypeUnknown) == nil, "RecordAccess failed on a fresh frame")
	common.SH_Assert(b.replacer.SetEvictable(*frameID, false) == nil, "SetEvictable failed on a fresh frame")
	b.globalLatch.WUnlock()

	pg := b.pages[*frameID]
	pg.SetPageId(pageID)
	pg.SetIsDirty(false)
	pg.ResetMemory()
	pg.IncPinCount()
	b.pagesLatches[*frameID].Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "NewPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
	}
	return pageID, pg
}

// FetchPage returns the requested page pinned, reading it from disk when it
// is not resident. Returns nil when the page would need a frame and every
// frame is pinned.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.globalLatch.RLock()
	if frameID, ok := b.pageTable[pageID]; ok {
		b.pagesLatches[frameID].Lock()
		common.SH_Assert(b.replacer.RecordAccess(frameID, AccessTypeLookup) == nil, "RecordAccess failed on a resident frame")
		common.SH_Assert(b.replacer.SetEvictable(frameID, false) == nil, "SetEvictable failed on a resident frame")
		b.globalLatch.RUnlock()

		pg := b.pages[frameID]
		pg.IncPinCount()
		b.pagesLatches[frameID].Unlock()
		return pg
	}
	b.globalLatch.RUnlock()

	b.globalLatch.WLock()
	// double checked lookup. another goroutine may have brought the page in
	// while no latch was held
	if frameID, ok := b.pageTable[pageID]; ok {
		b.pagesLatches[frameID].Lock()
		common.SH_Assert(b.replacer.RecordAccess(frameID, AccessTypeLookup) == nil, "RecordAccess failed on a resident frame")
		common.SH_Assert(b.replacer.SetEvictable(frameID, false) == nil, "SetEvictable failed on a resident frame")
		b.globalLatch.WUnlock()

		pg := b.pages[frameID]
		pg.IncPinCount()
		b.pagesLatches[frameID].Unlock()
		return pg
	}

	frameID := b.findFreeFrame()
	if frameID == nil {
		b.globalLatch.WUnlock()
		return nil
	}
	b.pageTable[pageID] = *frameID

	pg := b.pages[*frameID]
	callback := make(chan bool, 1)
	b.diskScheduler.Schedule(&disk.DiskRequest{
		IsWrite:  false,
		Data:     pg.Data()[:],
		PageID:   pageID,
		Callback: callback,
	})
	if !<-callback {
		// the disk manager rejected the read (e.g. deallocated page)
		delete(b.pageTable, pageID)
		b.freeList = append(b.freeList, *frameID)
		b.globalLatch.WUnlock()
		return nil
	}

	b.pagesLatches[*frameID].Lock()
	common.SH_Assert(b.replacer.RecordAccess(*frameID, AccessTypeLookup) == nil, "RecordAccess failed on a fresh frame")
	common.SH_Assert(b.replacer.SetEvictable(*frameID, false) == nil, "SetEvictable failed on a fresh frame")
	b.globalLatch.WUnlock()

	pg.SetPageId(pageID)
	pg.SetIsDirty(false)
	pg.IncPinCount()
	b.pagesLatches[*frameID].Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "FetchPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
	}
	return pg
}

// UnpinPage drops one pin of the page. With the last pin gone the frame
// becomes an eviction candidate. isDirty ORs into the frame's dirty flag.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	b.globalLatch.RLock()
	defer b.globalLatch.RUnlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}

	// the global latch stays held: a SetEvictable below must not race with
	// victim selection
	b.pagesLatches[frameID].Lock()
	defer b.pagesLatches[frameID].Unlock()

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		return false
	}
	pg.SetIsDirty(pg.IsDirty() || isDirty)
	pg.DecPinCount()
	if pg.PinCount() == 0 {
		common.SH_Assert(b.replacer.SetEvictable(frameID, true) == nil, "SetEvictable failed on an unpinned frame")
	}
	return true
}

// FlushPage writes the page's current content to disk and clears the dirty
// flag, whatever its previous value. Returns false for non-resident pages.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.globalLatch.RLock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.globalLatch.RUnlock()
		return false
	}
	b.pagesLatches[frameID].Lock()
	b.globalLatch.RUnlock()

	b.flushFrame(b.pages[frameID])
	b.pagesLatches[frameID].Unlock()
	return true
}

// flushFrame synchronously writes one frame. Callers serialize access to
// the frame (its latch or the exclusive global latch).
func (b *BufferPoolManager) flushFrame(pg *page.Page) {
	callback := make(chan bool, 1)
	b.diskScheduler.Schedule(&disk.DiskRequest{
		IsWrite:  true,
		Data:     pg.Data()[:],
		PageID:   pg.GetPageId(),
		Callback: callback,
	})
	common.SH_Assert(<-callback, fmt.Sprintf("disk write failed. pageId:%d", pg.GetPageId()))
	pg.SetIsDirty(false)
}

// FlushAllPages writes every resident page to disk. The caller guarantees
// no concurrent mutators.
func (b *BufferPoolManager) FlushAllPages() {
	b.globalLatch.RLock()
	pageIDs := make([]types.PageID, 0, len(b.pageTable))
	for pageID := range b.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	b.globalLatch.RUnlock()

	slices.Sort(pageIDs)
	for _, pageID := range pageIDs {
		b.FlushPage(pageID)
	}
}

// DeletePage drops a page from the pool and puts its frame back on the free
// list. Non-resident pages succeed trivially; pinned pages fail.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	b.globalLatch.RLock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.globalLatch.RUnlock()
		return true
	}
	b.globalLatch.RUnlock()

	b.globalLatch.WLock()
	defer b.globalLatch.WUnlock()
	b.pagesLatches[frameID].Lock()
	defer b.pagesLatches[frameID].Unlock()

	pg := b.pages[frameID]
	if pg.GetPageId() != pageID {
		// the frame was rebound while no latch was held
		return true
	}
	if pg.PinCount() > 0 {
		return false
	}

	delete(b.pageTable, pageID)
	common.SH_Assert(b.replacer.Remove(frameID) == nil, "Remove failed on an unpinned frame")
	b.freeList = append(b.freeList, frameID)
	pg.ResetMemory()
	pg.SetPageId(types.InvalidPageID)
	pg.SetIsDirty(false)
	b.deallocatePage(pageID)
	return true
}

// findFreeFrame takes a frame from the free list, or evicts a victim,
// flushing it first when dirty. Caller holds globalLatch exclusively. The
// returned frame carries no page table mapping.
func (b *BufferPoolManager) findFreeFrame() *FrameID {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return &frameID
	}

	victim := b.replacer.Evict()
	if victim == nil {
		return nil
	}
	pg := b.pages[*victim]
	if common.EnableDebug {
		common.ShPrintf(common.CACHE_OUT_IN_INFO, "findFreeFrame: cache out occurs! pageId:%d\n", pg.GetPageId())
	}
	if pg.IsDirty() {
		b.flushFrame(pg)
	}
	delete(b.pageTable, pg.GetPageId())
	return victim
}

// allocatePage hands out monotonically increasing page ids starting at 0
func (b *BufferPoolManager) allocatePage() types.PageID {
	return types.PageID(atomic.AddInt32(&b.nextPageID, 1) - 1)
}

// deallocatePage would return the page's disk space to a free space map.
// There is no such map yet, so the id is simply retired.
func (b *BufferPoolManager) deallocatePage(pageID types.PageID) {
}

// ShutDown stops the disk scheduler's background workers. Dirty pages are
// not flushed; call FlushAllPages first when they must survive.
func (b *BufferPoolManager) ShutDown() {
	b.diskScheduler.ShutDown()
}

// Size returns the number of frames which can hold a new page right now
func (b *BufferPoolManager) Size() uint32 {
	b.globalLatch.RLock()
	defer b.globalLatch.RUnlock()
	return uint32(len(b.freeList)) + b.replacer.Size()
}
