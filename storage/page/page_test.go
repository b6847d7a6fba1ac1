package page

import (
	"testing"

	"github.com/mkobaru/KawasemiDB/common"
	testingpkg "github.com/mkobaru/KawasemiDB/testing/testing_assert"
	"github.com/mkobaru/KawasemiDB/types"
)

func TestNewEmptyPage(t *testing.T) {
	p := NewEmpty()

	testingpkg.Equals(t, types.InvalidPageID, p.GetPageId())
	testingpkg.Equals(t, int32(0), p.PinCount())
	testingpkg.Equals(t, false, p.IsDirty())
	testingpkg.Equals(t, [common.PageSize]byte{}, *p.Data())
}

func TestPinCount(t *testing.T) {
	p := New(types.PageID(0), false, &[common.PageSize]byte{})

	testingpkg.Equals(t, int32(1), p.PinCount())
	p.IncPinCount()
	testingpkg.Equals(t, int32(2), p.PinCount())
	p.DecPinCount()
	p.DecPinCount()
	testingpkg.Equals(t, int32(0), p.PinCount())
}

func TestPageDataMutation(t *testing.T) {
	p := NewEmpty()
	p.SetPageId(types.PageID(3))

	p.Copy(0, []byte("Hello"))
	testingpkg.Equals(t, [common.PageSize]byte{'H', 'e', 'l', 'l', 'o'}, *p.Data())

	p.Copy(5, []byte(", World!"))
	testingpkg.Equals(t, byte(','), p.Data()[5])

	p.SetIsDirty(true)
	testingpkg.Equals(t, true, p.IsDirty())

	p.ResetMemory()
	testingpkg.Equals(t, [common.PageSize]byte{}, *p.Data())
}

func TestPageLatch(t *testing.T) {
	p := NewEmpty()

	p.RLatch()
	// a second shared holder must not block
	p.RLatch()
	p.RUnlatch()
	p.RUnlatch()

	p.WLatch()
	acquired := make(chan struct{})
	go func() {
		p.RLatch()
		p.RUnlatch()
		close(acquired)
	}()
	p.WUnlatch()
	<-acquired
}
