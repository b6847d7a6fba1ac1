package buffer

import (
	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/storage/page"
	"github.com/mkobaru/KawasemiDB/types"
)

// BasicPageGuard scopes a pin. Dropping it unpins the page exactly once,
// reporting it dirty when the holder used DataMut.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	isDirty bool
	dropped bool
}

// PageId returns the id of the guarded page
func (g *BasicPageGuard) PageId() types.PageID {
	return g.page.GetPageId()
}

// Data gives read access to the page content
func (g *BasicPageGuard) Data() *[common.PageSize]byte {
	return g.page.Data()
}

// DataMut gives write access to the page content and marks the guard dirty
func (g *BasicPageGuard) DataMut() *[common.PageSize]byte {
	g.isDirty = true
	return g.page.Data()
}

// Drop releases the pin. Further calls do nothing.
func (g *BasicPageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.bpm.UnpinPage(g.page.GetPageId(), g.isDirty)
}

// ReadPageGuard additionally holds the page's latch shared for its lifetime
type ReadPageGuard struct {
	guard BasicPageGuard
}

func (g *ReadPageGuard) PageId() types.PageID {
	return g.guard.PageId()
}

func (g *ReadPageGuard) Data() *[common.PageSize]byte {
	return g.guard.Data()
}

// Drop releases the shared latch and the pin. Further calls do nothing.
func (g *ReadPageGuard) Drop() {
	if g.guard.dropped {
		return
	}
	g.guard.page.RUnlatch()
	g.guard.Drop()
}

// WritePageGuard holds the page's latch exclusively and reports the page
// dirty when dropped
type WritePageGuard struct {
	guard BasicPageGuard
}

func (g *WritePageGuard) PageId() types.PageID {
	return g.guard.PageId()
}

func (g *WritePageGuard) Data() *[common.PageSize]byte {
	return g.guard.Data()
}

func (g *WritePageGuard) DataMut() *[common.PageSize]byte {
	return g.guard.DataMut()
}

// Drop releases the exclusive latch and the pin. Further calls do nothing.
func (g *WritePageGuard) Drop() {
	if g.guard.dropped {
		return
	}
	g.guard.page.WUnlatch()
	g.guard.Drop()
}

// FetchPageBasic pairs FetchPage with a scoped unpin
func (b *BufferPoolManager) FetchPageBasic(pageID types.PageID) *BasicPageGuard {
	pg := b.FetchPage(pageID)
	if pg == nil {
		return nil
	}
	return &BasicPageGuard{bpm: b, page: pg}
}

// FetchPageRead pins the page and latches it shared
func (b *BufferPoolManager) FetchPageRead(pageID types.PageID) *ReadPageGuard {
	pg := b.FetchPage(pageID)
	if pg == nil {
		return nil
	}
	pg.RLatch()
	return &ReadPageGuard{BasicPageGuard{bpm: b, page: pg}}
}

// FetchPageWrite pins the page and latches it exclusively
func (b *BufferPoolManager) FetchPageWrite(pageID types.PageID) *WritePageGuard {
	pg := b.FetchPage(pageID)
	if pg == nil {
		return nil
	}
	pg.WLatch()
	return &WritePageGuard{BasicPageGuard{bpm: b, page: pg, isDirty: true}}
}

// NewPageGuarded pairs NewPage with a scoped unpin
func (b *BufferPoolManager) NewPageGuarded() (types.PageID, *BasicPageGuard) {
	pageID, pg := b.NewPage()
	if pg == nil {
		return types.InvalidPageID, nil
	}
	return pageID, &BasicPageGuard{bpm: b, page: pg}
}
