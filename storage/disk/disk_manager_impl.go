// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/types"
	"github.com/ncw/directio"
)

// DiskManagerImpl is the disk implementation of DiskManager
type DiskManagerImpl struct {
	db          *os.File
	fileName    string
	numWrites   uint64
	size        int64
	dbFileMutex *sync.Mutex
}

// NewDiskManagerImpl returns a DiskManager instance
func NewDiskManagerImpl(dbFilename string) DiskManager {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.Fatalln("can't open db file")
		return nil
	}

	fileInfo, err := file.Stat()
	if err != nil {
		log.Fatalln("file info error")
		return nil
	}

	fileSize := fileInfo.Size()

	return &DiskManagerImpl{file, dbFilename, 0, fileSize, new(sync.Mutex)}
}

// ShutDown closes the database file
func (d *DiskManagerImpl) ShutDown() {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	d.db.Close()
}

// WritePage writes a page to the database file
func (d *DiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if len(pageData) != common.PageSize {
		return errors.New("page data size is not PageSize")
	}

	offset := int64(pageId) * int64(common.PageSize)
	buf := directio.AlignedBlock(common.PageSize)
	copy(buf, pageData)

	d.db.Seek(offset, io.SeekStart)
	bytesWritten, err := d.db.Write(buf)
	if err != nil {
		return err
	}

	if bytesWritten != common.PageSize {
		return errors.New("bytes written not equals page size")
	}

	if offset >= d.size {
		d.size = offset + int64(bytesWritten)
	}

	d.numWrites++
	d.db.Sync()
	return nil
}

// ReadPage reads a page from the database file.
// Pages beyond the current file size read back as zero-cleared data.
func (d *DiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if len(pageData) != common.PageSize {
		return errors.New("page data size is not PageSize")
	}

	offset := int64(pageID) * int64(common.PageSize)

	fileInfo, err := d.db.Stat()
	if err != nil {
		return errors.New("file info error")
	}

	if offset >= fileInfo.Size() {
		// never written page
		for i := range pageData {
			pageData[i] = 0
		}
		return nil
	}

	buf := directio.AlignedBlock(common.PageSize)
	d.db.Seek(offset, io.SeekStart)
	bytesRead, err := d.db.Read(buf)
	if err != nil {
		return errors.New("I/O error while reading")
	}

	if bytesRead < common.PageSize {
		// zero-fill the tail of a partially written page
		for i := bytesRead; i < common.PageSize; i++ {
			buf[i] = 0
		}
	}
	copy(pageData, buf)

	return nil
}

// GetNumWrites returns the number of disk writes
func (d *DiskManagerImpl) GetNumWrites() uint64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.numWrites
}

// Size returns the size of the file in disk
func (d *DiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()
	return d.size
}
