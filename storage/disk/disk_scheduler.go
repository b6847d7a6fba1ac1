package disk

import (
	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/types"
)

// DiskRequest represents one read or write of a single page. Data must be
// exactly PageSize bytes. The worker which executed the request sends the
// result to Callback exactly once.
type DiskRequest struct {
	IsWrite  bool
	Data     []byte
	PageID   types.PageID
	Callback chan bool
}

// workerShard executes the requests of the page ids assigned to it, one at a
// time in arrival order
type workerShard struct {
	diskManager  DiskManager
	requestQueue *RequestChannel
	finished     chan struct{}
}

// DiskScheduler takes disk requests and executes them asynchronously on
// background workers. Requests are sharded by page id, so all requests for
// one page are serialized and run in submission order.
type DiskScheduler struct {
	diskManager  DiskManager
	requestQueue *RequestChannel
	workers      [common.NumDiskScheduleWorkers]*workerShard
	finished     chan struct{}
}

func NewDiskScheduler(diskManager DiskManager) *DiskScheduler {
	scheduler := &DiskScheduler{
		diskManager:  diskManager,
		requestQueue: NewRequestChannel(),
		finished:     make(chan struct{}),
	}
	for i := 0; i < common.NumDiskScheduleWorkers; i++ {
		worker := &workerShard{diskManager, NewRequestChannel(), make(chan struct{})}
		scheduler.workers[i] = worker
		go worker.run()
	}
	go scheduler.dispatch()

	return scheduler
}

// Schedule hands a request over to the scheduler. It never blocks
func (s *DiskScheduler) Schedule(request *DiskRequest) {
	s.requestQueue.Put(request)
}

// ShutDown stops the dispatcher and the workers. All requests scheduled
// before the call are executed before their worker exits. The caller must
// not call Schedule concurrently with or after ShutDown.
func (s *DiskScheduler) ShutDown() {
	s.requestQueue.Put(nil)
	<-s.finished
	for _, worker := range s.workers {
		worker.requestQueue.Put(nil)
		<-worker.finished
	}
}

func (s *DiskScheduler) dispatch() {
	defer close(s.finished)
	for {
		request := s.requestQueue.Get()
		if request == nil {
			break
		}
		s.workers[shardHash(request.PageID)].requestQueue.Put(request)
	}
}

func shardHash(pageID types.PageID) int {
	return int(pageID) % common.NumDiskScheduleWorkers
}

func (w *workerShard) run() {
	defer close(w.finished)
	for {
		request := w.requestQueue.Get()
		if request == nil {
			break
		}
		var err error
		if request.IsWrite {
			err = w.diskManager.WritePage(request.PageID, request.Data)
		} else {
			err = w.diskManager.ReadPage(request.PageID, request.Data)
		}
		if err != nil {
			common.ShPrintf(common.ERROR, "DiskScheduler: I/O failed. pageId:%d isWrite:%v err:%v\n", request.PageID, request.IsWrite, err)
		}
		request.Callback <- (err == nil)
	}
}
