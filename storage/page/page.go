// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import (
	"sync/atomic"

	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/types"
)

/**
 * Page is the basic unit of storage within the database system. Page provides a wrapper for actual data pages being
 * held in main memory. Page also contains book-keeping information that is used by the buffer pool manager, e.g.
 * pin count, dirty flag, page id, etc.
 */
type Page struct {
	id       types.PageID // identifies the page. It is used to find the offset of the page on disk
	pinCount int32        // counts how many goroutines are accessing it
	isDirty  bool         // the page was modified but not flushed
	data     *[common.PageSize]byte
	rwlatch_ common.ReaderWriterLatch
}

// IncPinCount increments pin count
func (p *Page) IncPinCount() {
	atomic.AddInt32(&p.pinCount, 1)
}

// DecPinCount decrements pin count
func (p *Page) DecPinCount() {
	atomic.AddInt32(&p.pinCount, -1)
}

// PinCount returns the pin count
func (p *Page) PinCount() int32 {
	return atomic.LoadInt32(&p.pinCount)
}

// GetPageId returns the page id
func (p *Page) GetPageId() types.PageID {
	return p.id
}

// SetPageId rebinds the frame to another page. Caller must hold the frame's latch.
func (p *Page) SetPageId(id types.PageID) {
	p.id = id
}

// Data returns the data of the page
func (p *Page) Data() *[common.PageSize]byte {
	return p.data
}

// SetIsDirty sets the isDirty bit
func (p *Page) SetIsDirty(isDirty bool) {
	p.isDirty = isDirty
}

// IsDirty checks if page is dirty
func (p *Page) IsDirty() bool {
	return p.isDirty
}

// Copy copies data to the page's data area starting at offset
func (p *Page) Copy(offset uint32, data []byte) {
	copy(p.data[offset:], data)
}

// ResetMemory zero-clears the page's data area
func (p *Page) ResetMemory() {
	*p.data = [common.PageSize]byte{}
}

func (p *Page) WLatch() {
	p.rwlatch_.WLock()
}

func (p *Page) WUnlatch() {
	p.rwlatch_.WUnlock()
}

func (p *Page) RLatch() {
	p.rwlatch_.RLock()
}

func (p *Page) RUnlatch() {
	p.rwlatch_.RUnlock()
}

// New creates a page with the provided content
func New(id types.PageID, isDirty bool, data *[common.PageSize]byte) *Page {
	return &Page{id, int32(1), isDirty, data, common.NewRWLatch()}
}

// NewEmpty creates an unpinned zero-cleared page bound to no disk page
func NewEmpty() *Page {
	return &Page{types.InvalidPageID, int32(0), false, &[common.PageSize]byte{}, common.NewRWLatch()}
}
