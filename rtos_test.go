package rtmcvm

import (
	"testing"
	"time"
)

func TestSemaphoreStartsTaken(t *testing.T) {
	k := NewGoroutineKernel()
	handle, err := k.SemaphoreCreate()
	if err != nil {
		t.Fatalf("SemaphoreCreate: %v", err)
	}

	ok, err := k.SemaphoreTake(handle, 20)
	if err != nil {
		t.Fatalf("SemaphoreTake: %v", err)
	}
	if ok {
		t.Fatal("semaphore should start taken (unavailable), but Take succeeded immediately")
	}
}

// TestSemaphoreHandoff covers S4: one goroutine gives, another blocked
// on Take must unblock and observe success.
func TestSemaphoreHandoff(t *testing.T) {
	k := NewGoroutineKernel()
	handle, err := k.SemaphoreCreate()
	if err != nil {
		t.Fatalf("SemaphoreCreate: %v", err)
	}

	result := make(chan bool, 1)
	go func() {
		ok, _ := k.SemaphoreTake(handle, WaitForever)
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	if err := k.SemaphoreGive(handle); err != nil {
		t.Fatalf("SemaphoreGive: %v", err)
	}

	select {
	case ok := <-result:
		if !ok {
			t.Fatal("expected semaphore take to succeed after give")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for semaphore handoff")
	}
}

// TestQueueFIFO covers S5's ordering requirement: messages must be
// received in send order.
func TestQueueFIFO(t *testing.T) {
	k := NewGoroutineKernel()
	handle, err := k.QueueCreate()
	if err != nil {
		t.Fatalf("QueueCreate: %v", err)
	}

	for i := int32(0); i < 3; i++ {
		ok, err := k.QueueSend(handle, ValueFromInt32(i), 0)
		if err != nil || !ok {
			t.Fatalf("QueueSend(%d): ok=%v err=%v", i, ok, err)
		}
	}

	for i := int32(0); i < 3; i++ {
		v, ok, err := k.QueueRecv(handle, 0)
		if err != nil || !ok {
			t.Fatalf("QueueRecv: ok=%v err=%v", ok, err)
		}
		if v.Int32() != i {
			t.Fatalf("FIFO order violated: got %d want %d", v.Int32(), i)
		}
	}
}

// TestQueueRecvTimeout covers S5's timeout requirement: a receive on an
// empty queue must return not-ok after roughly the requested timeout,
// not immediately and not forever.
func TestQueueRecvTimeout(t *testing.T) {
	k := NewGoroutineKernel()
	handle, err := k.QueueCreate()
	if err != nil {
		t.Fatalf("QueueCreate: %v", err)
	}

	start := time.Now()
	_, ok, err := k.QueueRecv(handle, 50)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("QueueRecv: %v", err)
	}
	if ok {
		t.Fatal("expected timeout (not-ok) on empty queue")
	}
	if elapsed < 40*time.Millisecond {
		t.Fatalf("timeout fired too early: %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("timeout took far longer than requested: %v", elapsed)
	}
}

func TestQueueSendBoundedCapacity(t *testing.T) {
	k := NewGoroutineKernel()
	handle, err := k.QueueCreate()
	if err != nil {
		t.Fatalf("QueueCreate: %v", err)
	}

	for i := 0; i < MaxMessageQueues; i++ {
		ok, err := k.QueueSend(handle, ValueFromInt32(int32(i)), 0)
		if err != nil || !ok {
			t.Fatalf("send %d should fit within capacity: ok=%v err=%v", i, ok, err)
		}
	}

	ok, err := k.QueueSend(handle, ValueFromInt32(99), 20)
	if err != nil {
		t.Fatalf("QueueSend: %v", err)
	}
	if ok {
		t.Fatal("expected send on a full queue to time out")
	}
}

func TestHalGpioRequiresInit(t *testing.T) {
	d := NewSimDriver()
	if err := d.GPIOSet(0, 1); err == nil {
		t.Fatal("expected error setting an uninitialised GPIO pin")
	}
	if err := d.GPIOInit(0, GPIOOutput); err != nil {
		t.Fatalf("GPIOInit: %v", err)
	}
	if err := d.GPIOSet(0, 1); err != nil {
		t.Fatalf("GPIOSet after init: %v", err)
	}
	v, err := d.GPIOGet(0)
	if err != nil || v != 1 {
		t.Fatalf("GPIOGet: v=%d err=%v", v, err)
	}
}

func TestHalAdcAllocatesFirstFreeChannel(t *testing.T) {
	d := NewSimDriver()
	ch0, err := d.ADCInit(5)
	if err != nil || ch0 != 0 {
		t.Fatalf("first ADCInit: ch=%d err=%v", ch0, err)
	}
	ch1, err := d.ADCInit(6)
	if err != nil || ch1 != 1 {
		t.Fatalf("second ADCInit: ch=%d err=%v", ch1, err)
	}
	// Re-initializing the same pin returns the same channel.
	again, err := d.ADCInit(5)
	if err != nil || again != ch0 {
		t.Fatalf("re-init same pin: ch=%d err=%v", again, err)
	}
}
