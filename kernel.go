package rtmcvm

import (
	"errors"
	"sync"
	"time"
)

// errInvalidHandle is returned (wrapped in a KernelFault) when an opcode
// addresses a semaphore/queue handle the kernel never issued.
var errInvalidHandle = errors.New("rtmcvm: invalid kernel handle")

// WaitForever is the timeout value meaning "block with no timeout",
// matching the original firmware's portMAX_DELAY convention.
const WaitForever = -1

// Kernel names the capabilities the VM needs from a host RTOS: task
// scheduling, binary semaphores, and fixed-capacity message queues. The
// real kernel is an external collaborator (spec.md §1) — this interface
// only specifies the shape the RTOS Bridge dispatches against.
// goroutineKernel below is the in-repo reference implementation used
// when no real RTOS is attached.
type Kernel interface {
	// SpawnTask starts fn as a new task running on the given core, and
	// returns a cancel func that requests cooperative shutdown.
	SpawnTask(core int, fn func(stop <-chan struct{})) (cancel func(), err error)

	// Sleep blocks the calling goroutine for d, returning early if stop
	// is closed.
	Sleep(stop <-chan struct{}, d time.Duration)

	// SemaphoreCreate returns a handle to a new binary semaphore. Binary
	// semaphores start TAKEN (unavailable), matching
	// xSemaphoreCreateBinary's documented initial state.
	SemaphoreCreate() (handle uint32, err error)
	SemaphoreTake(handle uint32, timeoutMs int32) (ok bool, err error)
	SemaphoreGive(handle uint32) error

	// QueueCreate returns a handle to a new fixed-capacity (10 element)
	// message queue.
	QueueCreate() (handle uint32, err error)
	QueueSend(handle uint32, msg Value, timeoutMs int32) (ok bool, err error)
	QueueRecv(handle uint32, timeoutMs int32) (msg Value, ok bool, err error)
}

// goroutineKernel is the reference Kernel: one goroutine per task,
// channel-backed binary semaphores, and bounded ring-buffer message
// queues. Grounded on coprocessor_manager.go's CoprocWorker/
// CoprocessorManager: a stop-func/done-channel pair per worker and
// select/time.After for bounded waits.
type goroutineKernel struct {
	mu    sync.Mutex
	sems  map[uint32]chan struct{}
	queus map[uint32]*boundedQueue
	nextS uint32
	nextQ uint32
}

// NewGoroutineKernel constructs the default in-process Kernel.
func NewGoroutineKernel() Kernel {
	return &goroutineKernel{
		sems:  make(map[uint32]chan struct{}),
		queus: make(map[uint32]*boundedQueue),
	}
}

func (k *goroutineKernel) SpawnTask(core int, fn func(stop <-chan struct{})) (func(), error) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stop)
	}()
	cancel := func() {
		close(stop)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
	return cancel, nil
}

func (k *goroutineKernel) Sleep(stop <-chan struct{}, d time.Duration) {
	select {
	case <-time.After(d):
	case <-stop:
	}
}

func (k *goroutineKernel) SemaphoreCreate() (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.sems) >= MaxSemaphores {
		return 0, &ResourceExhausted{Kind: ResourceSemaphore}
	}
	k.nextS++
	h := k.nextS
	// Buffered with capacity 1, left empty: binary semaphores created
	// via RTOS_SEMAPHORE_CREATE start TAKEN, not available.
	k.sems[h] = make(chan struct{}, 1)
	return h, nil
}

func (k *goroutineKernel) SemaphoreTake(handle uint32, timeoutMs int32) (bool, error) {
	k.mu.Lock()
	ch, ok := k.sems[handle]
	k.mu.Unlock()
	if !ok {
		return false, &KernelFault{Op: OpRtosSemaphoreTake, Err: errInvalidHandle}
	}
	if timeoutMs == WaitForever {
		<-ch
		return true, nil
	}
	select {
	case <-ch:
		return true, nil
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return false, nil
	}
}

func (k *goroutineKernel) SemaphoreGive(handle uint32) error {
	k.mu.Lock()
	ch, ok := k.sems[handle]
	k.mu.Unlock()
	if !ok {
		return &KernelFault{Op: OpRtosSemaphoreGive, Err: errInvalidHandle}
	}
	select {
	case ch <- struct{}{}:
	default:
		// already given/full: matches xSemaphoreGive's no-op-on-full
	}
	return nil
}

func (k *goroutineKernel) QueueCreate() (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.queus) >= MaxQueues {
		return 0, &ResourceExhausted{Kind: ResourceQueue}
	}
	k.nextQ++
	h := k.nextQ
	k.queus[h] = newBoundedQueue(MaxMessageQueues)
	return h, nil
}

func (k *goroutineKernel) QueueSend(handle uint32, msg Value, timeoutMs int32) (bool, error) {
	k.mu.Lock()
	q, ok := k.queus[handle]
	k.mu.Unlock()
	if !ok {
		return false, &KernelFault{Op: OpMsgSend, Err: errInvalidHandle}
	}
	return q.send(msg, timeoutMs), nil
}

func (k *goroutineKernel) QueueRecv(handle uint32, timeoutMs int32) (Value, bool, error) {
	k.mu.Lock()
	q, ok := k.queus[handle]
	k.mu.Unlock()
	if !ok {
		return 0, false, &KernelFault{Op: OpMsgRecv, Err: errInvalidHandle}
	}
	v, ok := q.recv(timeoutMs)
	return v, ok, nil
}

// MaxSemaphores and MaxQueues bound the RTOS bridge's handle tables;
// spec.md does not name an exact semaphore cap, so this follows the
// same order of magnitude as the message queue and task tables.
const (
	MaxSemaphores = 64
	MaxTasks      = 32
	MaxQueues     = 16
)

// boundedQueue is a fixed-capacity FIFO with bounded-wait send/recv,
// implementing the 10-element message queue named in spec.md §5.
type boundedQueue struct {
	ch chan Value
}

func newBoundedQueue(cap int) *boundedQueue {
	return &boundedQueue{ch: make(chan Value, cap)}
}

func (q *boundedQueue) send(v Value, timeoutMs int32) bool {
	if timeoutMs == WaitForever {
		q.ch <- v
		return true
	}
	select {
	case q.ch <- v:
		return true
	default:
	}
	select {
	case q.ch <- v:
		return true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return false
	}
}

func (q *boundedQueue) recv(timeoutMs int32) (Value, bool) {
	if timeoutMs == WaitForever {
		v := <-q.ch
		return v, true
	}
	select {
	case v := <-q.ch:
		return v, true
	default:
	}
	select {
	case v := <-q.ch:
		return v, true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return 0, false
	}
}
