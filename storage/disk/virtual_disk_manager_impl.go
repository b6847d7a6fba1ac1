package disk

import (
	"errors"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/types"
)

// VirtualDiskManagerImpl is a DiskManager which keeps the database file on memory.
// It is mainly used on testing because file I/O makes tests slow and flaky.
type VirtualDiskManagerImpl struct {
	db             *memfile.File
	fileName       string
	numWrites      uint64
	size           int64
	deallocatedIDs mapset.Set[types.PageID]
	dbFileMutex    *sync.Mutex
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))

	return &VirtualDiskManagerImpl{file, dbFilename, 0, int64(0), mapset.NewSet[types.PageID](), new(sync.Mutex)}
}

// ShutDown does nothing. data is just on memory
func (d *VirtualDiskManagerImpl) ShutDown() {
}

// WritePage writes a page to the in-memory file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageId) * int64(common.PageSize)
	d.db.WriteAt(pageData, offset)
	d.deallocatedIDs.Remove(pageId)

	if offset >= d.size {
		d.size = offset + int64(len(pageData))
	}

	d.numWrites++
	return nil
}

// ReadPage reads a page from the in-memory file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if d.deallocatedIDs.Contains(pageID) {
		return types.DeallocatedPageErr
	}

	offset := int64(pageID) * int64(common.PageSize)

	if offset >= d.size {
		// never written page
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	_, err := d.db.ReadAt(pageData, offset)
	if err != nil {
		return errors.New("I/O error while reading")
	}
	return nil
}

// DeallocatePage marks a page id so that later reads of it fail
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	d.deallocatedIDs.Add(pageID)
}

// GetNumWrites returns the number of disk writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numWrites
}

// Size returns the size of the in-memory file
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.size
}
