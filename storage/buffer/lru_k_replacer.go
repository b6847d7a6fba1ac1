package buffer

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/golang-collections/collections/queue"
	"github.com/mkobaru/KawasemiDB/common"
	"github.com/mkobaru/KawasemiDB/errors"
)

// FrameID is the type for frame id
type FrameID uint32

type AccessType int32

const (
	AccessTypeUnknown AccessType = iota
	AccessTypeLookup
	AccessTypeScan
	AccessTypeIndex
)

const ErrInvalidFrameID = errors.Error("invalid frame id")
const ErrFrameNotEvictable = errors.Error("frame is not evictable")

// pseudo timestamp which compares smaller than every real one. Real
// timestamps start at 1, so 0 marks a frame with fewer than k accesses and
// makes it the preferred victim.
const timestampNegInf = uint64(0)

// lruKNode is the access bookkeeping of one frame. history holds up to k
// timestamps, oldest at the front.
type lruKNode struct {
	history        *queue.Queue
	timestampAdded uint64
	isEvictable    bool
	presentInPQ    bool
}

func newLRUKNode(timestamp uint64) *lruKNode {
	history := queue.New()
	history.Enqueue(timestamp)
	return &lruKNode{history, timestamp, false, true}
}

func (n *lruKNode) earliestTimestamp() uint64 {
	return n.history.Peek().(uint64)
}

// kthLastTimestamp is timestampNegInf while the node has not yet collected
// k accesses
func (n *lruKNode) kthLastTimestamp(k int) uint64 {
	if n.history.Len() == k {
		return n.earliestTimestamp()
	}
	return timestampNegInf
}

// pqNode is a snapshot of a frame's eviction priority at some point in
// time. Snapshots are never removed from the queue eagerly; Evict discards
// the ones that no longer describe their frame.
type pqNode struct {
	frameID           FrameID
	kthLastTimestamp  uint64
	earliestTimestamp uint64
}

func newPQNode(frameID FrameID, k int, node *lruKNode) pqNode {
	return pqNode{frameID, node.kthLastTimestamp(k), node.earliestTimestamp()}
}

// evictionQueue orders pqNodes so that the frame with the largest backward
// k-distance is on top: smallest kth-last timestamp first, earliest first
// access as the tie breaker.
type evictionQueue []pqNode

func (q evictionQueue) Len() int { return len(q) }

func (q evictionQueue) Less(i, j int) bool {
	if q[i].kthLastTimestamp != q[j].kthLastTimestamp {
		return q[i].kthLastTimestamp < q[j].kthLastTimestamp
	}
	return q[i].earliestTimestamp < q[j].earliestTimestamp
}

func (q evictionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *evictionQueue) Push(x any) { *q = append(*q, x.(pqNode)) }

func (q *evictionQueue) Pop() any {
	old := *q
	n := len(old)
	node := old[n-1]
	*q = old[:n-1]
	return node
}

/**
 * LRUKReplacer implements the LRU-k replacement policy.
 *
 * The LRU-k algorithm evicts the frame whose backward k-distance is the
 * maximum over all evictable frames. Backward k-distance is the difference
 * between the current timestamp and the timestamp of the k-th previous
 * access. A frame with fewer than k recorded accesses has +inf backward
 * k-distance; when several frames have +inf distance, classical LRU over
 * the first access decides.
 *
 * Priorities are kept in a lazily invalidated queue: RecordAccess never
 * touches the queue of other frames' snapshots, and Evict pops until the
 * top snapshot still matches its frame's state. globalLatch is held shared
 * by every operation except Evict, which takes it exclusively; per-frame
 * state is protected by nodeLatches.
 */
type LRUKReplacer struct {
	replacerSize     uint32
	k                int
	nodeStore        []*lruKNode
	nodeLatches      []sync.Mutex
	pq               evictionQueue
	pqLatch          sync.Mutex
	currentTimestamp uint64
	numEvictable     int32
	globalLatch      common.ReaderWriterLatch
}

func NewLRUKReplacer(numFrames uint32, k int) *LRUKReplacer {
	return &LRUKReplacer{
		replacerSize:     numFrames,
		k:                k,
		nodeStore:        make([]*lruKNode, numFrames),
		nodeLatches:      make([]sync.Mutex, numFrames),
		pq:               make(evictionQueue, 0, numFrames),
		currentTimestamp: 1,
		globalLatch:      common.NewRWLatch(),
	}
}

// Evict removes the evictable frame with the largest backward k-distance
// and returns its id, or nil when no frame can be evicted
func (r *LRUKReplacer) Evict() *FrameID {
	r.globalLatch.WLock()
	defer r.globalLatch.WUnlock()

	for {
		r.pqLatch.Lock()
		if r.pq.Len() == 0 {
			r.pqLatch.Unlock()
			return nil
		}
		top := heap.Pop(&r.pq).(pqNode)
		r.pqLatch.Unlock()

		r.nodeLatches[top.frameID].Lock()
		node := r.nodeStore[top.frameID]
		if node == nil {
			// frame was removed or already evicted
			r.nodeLatches[top.frameID].Unlock()
			continue
		}
		if top.earliestTimestamp < node.timestampAdded {
			// snapshot of an earlier incarnation of this frame
			r.nodeLatches[top.frameID].Unlock()
			continue
		}
		if top.kthLastTimestamp != node.kthLastTimestamp(r.k) ||
			top.earliestTimestamp != node.earliestTimestamp() {
			// stale snapshot. replace it with a fresh one
			r.pushPQNode(newPQNode(top.frameID, r.k, node))
			r.nodeLatches[top.frameID].Unlock()
			continue
		}
		if !node.isEvictable {
			// up to date but pinned. SetEvictable(true) re-inserts it
			node.presentInPQ = false
			r.nodeLatches[top.frameID].Unlock()
			continue
		}

		r.nodeStore[top.frameID] = nil
		r.nodeLatches[top.frameID].Unlock()
		atomic.AddInt32(&r.numEvictable, -1)
		victim := top.frameID
		return &victim
	}
}

// RecordAccess records an access of the frame at the current logical
// timestamp, creating its bookkeeping node on first access
func (r *LRUKReplacer) RecordAccess(frameID FrameID, accessType AccessType) error {
	if uint32(frameID) >= r.replacerSize {
		return ErrInvalidFrameID
	}
	r.globalLatch.RLock()
	defer r.globalLatch.RUnlock()

	timestamp := atomic.AddUint64(&r.currentTimestamp, 1) - 1

	r.nodeLatches[frameID].Lock()
	defer r.nodeLatches[frameID].Unlock()

	node := r.nodeStore[frameID]
	if node == nil {
		node = newLRUKNode(timestamp)
		r.nodeStore[frameID] = node
		r.pushPQNode(newPQNode(frameID, r.k, node))
		return nil
	}
	if node.history.Len() == r.k {
		node.history.Dequeue()
	}
	node.history.Enqueue(timestamp)
	return nil
}

// SetEvictable toggles whether a frame may be chosen as a victim
func (r *LRUKReplacer) SetEvictable(frameID FrameID, setEvictable bool) error {
	if uint32(frameID) >= r.replacerSize {
		return ErrInvalidFrameID
	}
	r.globalLatch.RLock()
	defer r.globalLatch.RUnlock()

	r.nodeLatches[frameID].Lock()
	defer r.nodeLatches[frameID].Unlock()

	node := r.nodeStore[frameID]
	if node == nil {
		return ErrInvalidFrameID
	}
	if node.isEvictable == setEvictable {
		return nil
	}
	node.isEvictable = setEvictable
	if setEvictable {
		if !node.presentInPQ {
			r.pushPQNode(newPQNode(frameID, r.k, node))
			node.presentInPQ = true
		}
		atomic.AddInt32(&r.numEvictable, 1)
	} else {
		atomic.AddInt32(&r.numEvictable, -1)
	}
	return nil
}

// Remove drops a frame's access history regardless of its backward
// k-distance. Unknown frames are ignored; removing a non-evictable frame
// is a caller bug.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	if uint32(frameID) >= r.replacerSize {
		return ErrInvalidFrameID
	}
	r.globalLatch.RLock()
	defer r.globalLatch.RUnlock()

	r.nodeLatches[frameID].Lock()
	defer r.nodeLatches[frameID].Unlock()

	node := r.nodeStore[frameID]
	if node == nil {
		return nil
	}
	if !node.isEvictable {
		return ErrFrameNotEvictable
	}
	r.nodeStore[frameID] = nil
	atomic.AddInt32(&r.numEvictable, -1)
	return nil
}

// Size returns the number of evictable frames
func (r *LRUKReplacer) Size() uint32 {
	r.globalLatch.RLock()
	defer r.globalLatch.RUnlock()
	return uint32(atomic.LoadInt32(&r.numEvictable))
}

func (r *LRUKReplacer) pushPQNode(node pqNode) {
	r.pqLatch.Lock()
	heap.Push(&r.pq, node)
	r.pqLatch.Unlock()
}
