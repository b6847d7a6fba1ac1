package disk

import (
	"github.com/mkobaru/KawasemiDB/types"
)

// DiskManager is responsible for interacting with disk
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	GetNumWrites() uint64
	ShutDown()
	Size() int64
}
