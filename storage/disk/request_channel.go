package disk

import (
	"sync"

	"github.com/golang-collections/collections/queue"
)

// RequestChannel is a multi-producer/multi-consumer blocking FIFO of disk
// requests. Capacity is unbounded. A nil request is the shutdown sentinel:
// a consumer observing it must exit its receive loop without re-queueing it.
type RequestChannel struct {
	mutex    *sync.Mutex
	notEmpty *sync.Cond
	requests *queue.Queue
}

func NewRequestChannel() *RequestChannel {
	mutex := new(sync.Mutex)
	return &RequestChannel{mutex, sync.NewCond(mutex), queue.New()}
}

// Put enqueues a request. It never blocks
func (c *RequestChannel) Put(request *DiskRequest) {
	c.mutex.Lock()
	c.requests.Enqueue(request)
	c.mutex.Unlock()
	c.notEmpty.Signal()
}

// Get dequeues the oldest request, blocking while the channel is empty
func (c *RequestChannel) Get() *DiskRequest {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for c.requests.Len() == 0 {
		c.notEmpty.Wait()
	}
	return c.requests.Dequeue().(*DiskRequest)
}
