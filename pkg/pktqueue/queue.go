package pktqueue

import (
	"sync"
	"time"
)

// Packet is one captured frame.
type Packet struct {
	Timestamp time.Time `json:"timestamp"`
	Length    int       `json:"length"` // original length on the wire
	Data      []byte    `json:"data"`
}

func (p Packet) CaptureLen() int { return len(p.Data) }

// Queue is an unbounded FIFO of packets. Pop blocks while the queue is
// empty. There is no capacity limit, a producer faster than its consumers
// grows the queue without bound.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	packets []Packet
	head    int
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends pkt and wakes one blocked Pop.
func (q *Queue) Push(pkt Packet) {
	q.mu.Lock()
	q.packets = append(q.packets, pkt)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the front packet, waiting until one is pushed.
func (q *Queue) Pop() Packet {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		q.cond.Wait()
	}
	return q.popLocked()
}

func (q *Queue) TryPop() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		return Packet{}, false
	}
	return q.popLocked(), true
}

// Size is the current depth. It is advisory only, a following Pop may
// still block when other consumers drain the queue first.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int { return len(q.packets) - q.head }

func (q *Queue) popLocked() Packet {
	pkt := q.packets[q.head]
	q.packets[q.head] = Packet{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array
	if q.head == len(q.packets) {
		q.packets = q.packets[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.packets) {
		n := copy(q.packets, q.packets[q.head:])
		clear(q.packets[n:])
		q.packets = q.packets[:n]
		q.head = 0
	}
	return pkt
}
